package auth

import (
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/mpapenbr/participant-core-go/pkg/session"
)

// DefaultHeader caches the Authorization header attached to authenticated
// requests.
type DefaultHeader struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

func NewDefaultHeader() *DefaultHeader {
	return &DefaultHeader{}
}

func (h *DefaultHeader) Set(sess session.AuthSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sess.AccessToken == "" {
		h.token = nil
		return
	}
	h.token = sess.OAuth2Token()
}

func (h *DefaultHeader) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = nil
}

// Value returns the header value or an empty string.
func (h *DefaultHeader) Value() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == nil {
		return ""
	}
	return h.token.Type() + " " + h.token.AccessToken
}

func (h *DefaultHeader) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == nil {
		return ""
	}
	return h.token.AccessToken
}

// Apply sets the Authorization header on req. It reports false if no
// header is cached.
func (h *DefaultHeader) Apply(req *http.Request) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == nil {
		return false
	}
	h.token.SetAuthHeader(req)
	return true
}
