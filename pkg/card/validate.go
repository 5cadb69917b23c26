package card

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agentvault/a2a-core/pkg/a2a"
)

var hriPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?/[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

var (
	validatorOnce sync.Once
	v             *validator.Validate
)

// validate returns the shared validator instance, registering the card
// package's custom tags on first use.
func validate() *validator.Validate {
	validatorOnce.Do(func() {
		v = validator.New()
		_ = v.RegisterValidation("hri", validateHRI)
		_ = v.RegisterValidation("httpsOrLocal", validateHTTPSOrLocal)
	})
	return v
}

// validateHRI checks that a human_readable_id is a lowercase, namespaced
// org/name identifier (spec §3).
func validateHRI(fl validator.FieldLevel) bool {
	return hriPattern.MatchString(fl.Field().String())
}

// validateHTTPSOrLocal enforces spec §3's invariant: an AgentCard's url
// must use HTTPS unless the host is localhost or 127.0.0.1.
func validateHTTPSOrLocal(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	return u.Scheme == "https"
}

// Validate runs struct-tag validation over c and translates any failures
// into a path-scoped CardValidationError (spec §4.1).
func Validate(c *AgentCard) error {
	err := validate().Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &a2a.CardValidationError{Issues: []a2a.CardIssue{{Path: "<root>", Reason: err.Error()}}}
	}

	issues := make([]a2a.CardIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, a2a.CardIssue{
			Path:   fieldPath(fe.Namespace()),
			Reason: reasonFor(fe),
		})
	}
	return &a2a.CardValidationError{Issues: issues}
}

// fieldPath strips the leading "AgentCard." the validator namespace
// always carries, leaving a dotted path relative to the card root.
func fieldPath(namespace string) string {
	return strings.TrimPrefix(namespace, "AgentCard.")
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "hri":
		return "must be a lowercase org/name identifier"
	case "httpsOrLocal":
		return "must use https unless the host is localhost/127.0.0.1"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
