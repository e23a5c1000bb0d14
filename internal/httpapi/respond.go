package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// handlerFunc is a route handler that reports failures by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts h to net/http and renders returned errors.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := AsHTTPError(err)
	if id, ok := RequestIDFromContext(r.Context()); ok {
		httpErr.RequestID = id
	}

	if httpErr.Code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected",
			slog.Int("status", httpErr.Code),
			slog.Any("error", err),
		)
	}

	writeJSON(w, httpErr.Code, map[string]any{"error": httpErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads at most limit bytes of JSON into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body, err := readBody(w, r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return ErrBadRequest("malformed JSON body", WithError(err), WithErrorCode("malformed_json"))
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large", WithError(err))
		}
		return nil, ErrBadRequest("unreadable request body", WithError(err))
	}
	return body, nil
}
