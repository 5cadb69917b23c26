package auth

import "sync"

// fakeKeychain is an in-memory Keychain used by tests so they never touch
// a real OS credential store.
type fakeKeychain struct {
	mu    sync.Mutex
	store map[string]string
	fail  bool
}

func newFakeKeychain() *fakeKeychain {
	return &fakeKeychain{store: map[string]string{}}
}

func (f *fakeKeychain) key(service, account string) string { return service + "|" + account }

func (f *fakeKeychain) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errNotFound
	}
	v, ok := f.store[f.key(service, account)]
	if !ok {
		return "", errNotFound
	}
	return v, nil
}

func (f *fakeKeychain) Set(service, account, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errNotFound
	}
	f.store[f.key(service, account)] = value
	return nil
}
