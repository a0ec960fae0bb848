package auth

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvironmentStore reads tokens from numbered environment variables such as
// GITHUB_TOKEN_1, GITHUB_TOKEN_2 and also from a bare GITHUB_TOKEN. It is read-only.
type EnvironmentStore struct {
	prefix  string
	environ func() []string
}

// NewEnvironmentStore creates a store reading <prefix>N variables
func NewEnvironmentStore(prefix string) *EnvironmentStore {
	if prefix == "" {
		prefix = "GITHUB_TOKEN_"
	}
	return &EnvironmentStore{prefix: prefix, environ: os.Environ}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the credential with the given variable name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	creds, _ := e.List()
	for _, c := range creds {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns numbered tokens in numeric order, gaps skipped, followed by
// the bare variable if set. Credentials are named after their variable.
func (e *EnvironmentStore) List() ([]*Credential, error) {
	type numbered struct {
		n    int
		cred *Credential
	}
	var found []numbered
	var bare *Credential
	bareName := strings.TrimSuffix(e.prefix, "_")

	for _, kv := range e.environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		value = strings.TrimSpace(value)

		if key == bareName {
			bare = &Credential{Name: key, Token: value, LastModified: time.Time{}}
			continue
		}
		if !strings.HasPrefix(key, e.prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, e.prefix))
		if err != nil || n < 1 {
			continue
		}
		found = append(found, numbered{n: n, cred: &Credential{Name: key, Token: value}})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	creds := make([]*Credential, 0, len(found)+1)
	for _, f := range found {
		creds = append(creds, f.cred)
	}
	if bare != nil {
		creds = append(creds, bare)
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks whether the named variable holds a token
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
