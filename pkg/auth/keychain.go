package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Keychain abstracts the OS credential store so the resolver can be tested
// without touching a real keychain and so the feature can be compiled out
// of environments where go-keyring has no backend (spec §9 "Keychain
// optionality").
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

var errKeychainDisabled = errors.New("keychain source is disabled")

// osKeychain adapts github.com/zalando/go-keyring, the only example-pack
// candidate this repository's stack does not demonstrate itself (see
// DESIGN.md) but a real, actively maintained cross-platform keychain
// library (macOS Keychain, Windows Credential Manager, Secret Service).
type osKeychain struct{}

func (osKeychain) Get(service, account string) (string, error) {
	v, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errNotFound
		}
		return "", err
	}
	return v, nil
}

func (osKeychain) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

var errNotFound = errors.New("credential not found in keychain")

func isNotFound(err error) bool {
	return errors.Is(err, errNotFound) || errors.Is(err, keyring.ErrNotFound)
}
