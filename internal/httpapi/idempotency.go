package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/postbox/pkg/cache"
	"github.com/dmitrymomot/postbox/pkg/logger"
)

// IdempotencyHeader carries the client-chosen idempotency key.
const IdempotencyHeader = "Idempotency-Key"

const (
	// DefaultIdempotencyTTL is how long a completed response is replayed.
	DefaultIdempotencyTTL = 24 * time.Hour

	// inFlightTTL bounds how long a crashed request blocks its key.
	inFlightTTL = time.Minute

	maxIdempotencyKeyLen = 255
)

// IdempotencyRecord is the cached outcome of an idempotent request.
type IdempotencyRecord struct {
	Body        []byte `json:"body,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	RequestHash string `json:"requestHash"`
	Status      int    `json:"status"`
	InFlight    bool   `json:"inFlight,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through. The key is claimed with a
// set-if-absent write before the handler runs, so concurrent duplicates get
// 409 instead of running twice. Reusing a key with a different body is 422.
// 5xx responses release the key so the client can retry.
func Idempotency(store cache.Cache[IdempotencyRecord], ttl time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if log == nil {
		log = logger.NewNope()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if idemKey == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(idemKey) > maxIdempotencyKeyLen {
				reject(w, r, ErrBadRequest("idempotency key too long", WithErrorCode("invalid_idempotency_key")))
				return
			}

			body, err := readBody(w, r, maxDeliveryBody)
			if err != nil {
				reject(w, r, AsHTTPError(err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := r.Method + " " + routePattern(r) + " " + idemKey
			hash := hashBody(body)

			claimed, err := store.Add(ctx, key, IdempotencyRecord{RequestHash: hash, InFlight: true}, inFlightTTL)
			if err != nil {
				log.ErrorContext(ctx, "idempotency store unavailable", slog.Any("error", err))
				reject(w, r, ErrServiceUnavailable("idempotency store unavailable", WithError(err)))
				return
			}

			if !claimed {
				stored, err := store.Get(ctx, key)
				switch {
				case errors.Is(err, cache.ErrNotFound):
					reject(w, r, NewHTTPError(http.StatusConflict, "request with this idempotency key is in progress"))
				case err != nil:
					log.ErrorContext(ctx, "idempotency store unavailable", slog.Any("error", err))
					reject(w, r, ErrServiceUnavailable("idempotency store unavailable", WithError(err)))
				case stored.RequestHash != hash:
					reject(w, r, ErrUnprocessable("idempotency key reused with different request body",
						WithErrorCode("idempotency_mismatch")))
				case stored.InFlight:
					reject(w, r, NewHTTPError(http.StatusConflict, "request with this idempotency key is in progress"))
				default:
					replay(w, stored)
				}
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// The outcome is stored even if the client has gone away.
			ctx = context.WithoutCancel(ctx)
			status := defaultStatus(rec.status)
			if status >= http.StatusInternalServerError {
				if err := store.Delete(ctx, key); err != nil {
					log.WarnContext(ctx, "release idempotency key", slog.Any("error", err))
				}
				return
			}

			record := IdempotencyRecord{
				Status:      status,
				Body:        rec.body.Bytes(),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: hash,
			}
			if err := store.Set(ctx, key, record, ttl); err != nil {
				log.ErrorContext(ctx, "persist idempotency record", slog.Any("error", err))
			}
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, httpErr *HTTPError) {
	if reqID, ok := RequestIDFromContext(r.Context()); ok {
		httpErr.RequestID = reqID
	}
	writeJSON(w, httpErr.Code, map[string]any{"error": httpErr})
}

func replay(w http.ResponseWriter, record IdempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(defaultStatus(record.Status))
	_, _ = w.Write(record.Body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
