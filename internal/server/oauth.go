package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/spotalyze/internal/auth"
	"github.com/desertthunder/spotalyze/internal/models"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *models.TokenInfo
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the provider callback for the CLI's loopback authorization flow.
// Implements the Handler interface for registration with a Router.
//
// The callback is validated by an [auth.Manager] against the session that began the flow.
// Only the first callback is processed; later ones are rejected to prevent replay.
type OAuthHandler struct {
	manager     *auth.Manager
	session     auth.Session
	path        string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler for callbacks on path, completing the flow begun for sess.
func NewOAuthHandler(manager *auth.Manager, sess auth.Session, path string) *OAuthHandler {
	if path == "" {
		path = "/"
	}
	return &OAuthHandler{
		manager:    manager,
		session:    sess,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the OAuth callback request and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	params := auth.CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	}

	token, err := h.manager.CompleteAuthorization(r.Context(), h.session, params)
	if err != nil {
		h.Send(OAuthResult{err: err})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, auth.UserMessage(err))
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>spotalyze</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .card { text-align: center; background: #1e1e1e; padding: 2rem; border-radius: 8px; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Connected to Spotify</h1>
        <p>Your analysis is running in the terminal. You can close this tab.</p>
    </div>
</body>
</html>
`
