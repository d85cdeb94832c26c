package transport

import "sync"

// Credential is the default access token attached to outgoing requests
// that do not carry their own Authorization header.
type Credential struct {
	mu    sync.RWMutex
	token string
}

// NewCredential returns an empty holder.
func NewCredential() *Credential {
	return &Credential{}
}

// Set replaces the default token.
func (c *Credential) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Clear removes the default token.
func (c *Credential) Clear() {
	c.Set("")
}

// Token returns the current default token, empty when cleared.
func (c *Credential) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}
