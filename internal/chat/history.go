package chat

import "net/http"

// WithChatHistory wraps a page handler that renders the transcript and
// accepts utterances. Before the handler runs, the session is entered with
// contextID, so arriving from a different page resets the conversation and
// every render starts from an initialized transcript.
func WithChatHistory(contextID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "no session", http.StatusInternalServerError)
				return
			}
			s.Enter(contextID)
			next.ServeHTTP(w, r)
		})
	}
}
