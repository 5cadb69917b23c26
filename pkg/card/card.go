// Package card implements the AgentCard descriptor model and its three
// loaders (file, URL, inline dict), per spec §3 and §4.1.
package card

// Provider describes who publishes an agent.
type Provider struct {
	Name    string `json:"name" validate:"required"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
	Contact string `json:"contact,omitempty"`
}

// Capabilities describes what an agent endpoint supports.
type Capabilities struct {
	A2AVersion              string   `json:"a2a_version" validate:"required"`
	SupportedMessageParts   []string `json:"supported_message_parts" validate:"required,min=1,dive,oneof=text data artifact-ref"`
	SupportsPushNotif       bool     `json:"supports_push_notifications,omitempty"`
	TEEDetails              any      `json:"tee_details,omitempty"`
	SupportsFollowUpMessage bool     `json:"supports_follow_up,omitempty"`
}

// SchemeKind discriminates the AuthScheme union.
type SchemeKind string

const (
	SchemeNone   SchemeKind = "none"
	SchemeAPIKey SchemeKind = "api_key"
	SchemeBearer SchemeKind = "bearer"
	SchemeOAuth2 SchemeKind = "oauth2"
)

// AuthScheme is one entry of an AgentCard's ordered auth_schemes
// preference list (spec §3).
type AuthScheme struct {
	Kind SchemeKind `json:"kind" validate:"required,oneof=none api_key bearer oauth2"`

	// ServiceID scopes the scheme's credentials in the resolver (api_key,
	// bearer, oauth2).
	ServiceID string `json:"service_identifier,omitempty"`

	// HeaderName is the header an api_key scheme's value is sent under.
	// Defaults to X-Api-Key.
	HeaderName string `json:"header_name,omitempty"`

	// TokenURL is the OAuth2 client-credentials token endpoint (oauth2
	// only).
	TokenURL string `json:"token_url,omitempty" validate:"omitempty,url"`

	// Scopes is the optional OAuth2 scope list (oauth2 only).
	Scopes []string `json:"scopes,omitempty"`
}

// EffectiveHeaderName returns the header an api_key value is carried in,
// defaulting per spec §3.
func (s AuthScheme) EffectiveHeaderName() string {
	if s.HeaderName != "" {
		return s.HeaderName
	}
	return "X-Api-Key"
}

// Skill describes a specific capability an agent advertises.
type Skill struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentCard is the immutable descriptor of a remote agent (spec §3).
type AgentCard struct {
	SchemaVersion    string `json:"schema_version" validate:"required"`
	HumanReadableID  string `json:"human_readable_id" validate:"required,hri"`
	Name             string `json:"name" validate:"required"`
	Description      string `json:"description,omitempty"`
	Provider         Provider `json:"provider" validate:"required"`
	AgentVersion     string `json:"agent_version" validate:"required"`
	URL              string `json:"url" validate:"required,url,httpsOrLocal"`
	Capabilities     Capabilities `json:"capabilities" validate:"required"`
	AuthSchemes      []AuthScheme `json:"auth_schemes" validate:"required,min=1,dive"`
	Skills           []Skill      `json:"skills,omitempty" validate:"dive"`
	Tags             []string     `json:"tags,omitempty"`
	PrivacyPolicyURL string       `json:"privacy_policy_url,omitempty" validate:"omitempty,url"`
	IconURL          string       `json:"icon_url,omitempty" validate:"omitempty,url"`
}

// HasScheme reports whether the card declares a scheme of the given kind,
// returning it if so.
func (c AgentCard) HasScheme(kind SchemeKind) (AuthScheme, bool) {
	for _, s := range c.AuthSchemes {
		if s.Kind == kind {
			return s, true
		}
	}
	return AuthScheme{}, false
}
