package auth

import (
	"sync"
)

// Pool is the set of credentials a crawl rotates through. It is safe for
// concurrent use and is the only state shared between crawl drivers.
type Pool struct {
	mu        sync.Mutex
	creds     []*Credential
	rotations int
}

// NewPool builds a pool over creds in the given order
func NewPool(creds []*Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrEmptyPool
	}
	cp := make([]*Credential, len(creds))
	copy(cp, creds)
	return &Pool{creds: cp}, nil
}

// Current returns the active credential
func (p *Pool) Current() *Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds[p.rotations%len(p.creds)]
}

// Rotate advances to the next credential and returns the absolute number of
// rotations so far. Callers compare counts to tell whether every credential
// has been tried since some earlier point.
func (p *Pool) Rotate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotations++
	return p.rotations
}

// Rotations returns the absolute rotation count without rotating
func (p *Pool) Rotations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotations
}

// Size returns the number of credentials
func (p *Pool) Size() int {
	return len(p.creds)
}

// Names lists credential names in rotation order
func (p *Pool) Names() []string {
	names := make([]string, len(p.creds))
	for i, c := range p.creds {
		names[i] = c.Name
	}
	return names
}

// Credentials returns the pooled credentials in rotation order
func (p *Pool) Credentials() []*Credential {
	out := make([]*Credential, len(p.creds))
	copy(out, p.creds)
	return out
}
