package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxRequestBodySize caps posted JSON-RPC frames (1 MB).
const maxRequestBodySize = 1 << 20

// SessionIDHeader is the alternative carrier for the session ID on posts.
const SessionIDHeader = "X-Session-Id"

// sseHandler opens the event stream. Each GET creates a fresh session, sends
// the endpoint event pointing the client at the message path, then relays the
// session's outbound channel until the client disconnects.
func (t *Transport) sseHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodOptions:
			handleOptions(w, r)
			return
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		sess, err := t.sessions.Register()
		if err != nil {
			logFromContext(r.Context(), t.logger).Error("failed to create session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer t.sessions.Remove(sess.ID)

		logger := logFromContext(r.Context(), t.logger).With("session_id", sess.ID)
		logger.Info("SSE stream opened", "active_sessions", t.sessions.Len())
		defer logger.Info("SSE stream closed")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// The endpoint event tells the client where to post requests for
		// this session.
		fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", t.messagePath, sess.ID)
		flusher.Flush()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sess.Out:
				if !ok {
					// Session removed or server shutting down.
					return
				}
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
				flusher.Flush()
			}
		}
	})
}

// messageHandler accepts posted JSON-RPC frames. The reply travels over the
// session's SSE stream; the POST itself just acknowledges receipt.
func (t *Transport) messageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
		case http.MethodOptions:
			handleOptions(w, r)
			return
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		logger := logFromContext(r.Context(), t.logger)

		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			sessionID = r.Header.Get(SessionIDHeader)
		}
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "Missing sessionId")
			return
		}

		sess, ok := t.sessions.Lookup(sessionID)
		if !ok {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, http.StatusBadRequest, "Request body too large (max 1MB)")
				return
			}
			writeError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		if len(body) == 0 {
			writeError(w, http.StatusBadRequest, "Empty request body")
			return
		}

		reply, err := t.dispatcher.HandleRaw(r.Context(), body)
		if err != nil {
			logger.Error("failed to handle message", "session_id", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		if reply != nil {
			if !sess.Send(reply) {
				// Session closed since the lookup, or the client is not
				// draining its event stream.
				logger.Warn("dropping reply for closed or slow session", "session_id", sessionID)
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, "Accepted")
	})
}

// handleOptions answers CORS preflight requests.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Id")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// healthHandler reports liveness. It is served without auth so supervisors
// can poll it.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","transport":"sse"}`))
	})
}
