package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazario/bazario-backend/api/responses"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	pkgredis "github.com/bazario/bazario-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// Money-moving endpoints keep their replay window open for a week.
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

type guardedRoute struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

var guardedRoutes = []guardedRoute{
	{http.MethodPost, exactPath("/api/v1/cart/items"), defaultIdempotencyTTL},
	{http.MethodPost, exactPath("/api/v1/wallet/funds"), defaultIdempotencyTTL},
	{http.MethodPost, pathAround("/api/v1/notifications/", "/read"), defaultIdempotencyTTL},
	{http.MethodPost, exactPath("/api/v1/notifications/read-all"), defaultIdempotencyTTL},
	{http.MethodPost, exactPath("/api/v1/orders/checkout"), criticalIdempotencyTTL},
	{http.MethodPost, pathAround("/api/v1/seller/order-items/", "/approve"), criticalIdempotencyTTL},
	{http.MethodPost, pathAround("/api/v1/seller/order-items/", "/reject"), criticalIdempotencyTTL},
}

// idempotencyRecord is the stored first response, replayed verbatim on reuse.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency guards mutating routes with an Idempotency-Key header. The first
// response under a key is cached in redis and replayed on repeats; reuse with
// a different body is a conflict.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := lookupGuard(r)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idempotencyKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), idempotencyKey)

			replayed, err := replayIfStored(r.Context(), store, w, key, requestHash)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if replayed {
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if err := persistResponse(r.Context(), store, key, ttl, rec, requestHash); err != nil {
				logError(r.Context(), logg, "persist idempotency record", err)
			}
		})
	}
}

// replayIfStored writes the cached response when the key was seen before.
// A stored record with a different request hash is a key-reuse conflict.
func replayIfStored(ctx context.Context, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, requestHash string) (bool, error) {
	stored, err := store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if stored == "" {
		return false, nil
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if record.RequestHash != requestHash {
		return false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}

	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, decErr := base64.StdEncoding.DecodeString(record.Body); decErr == nil {
		_, _ = w.Write(decoded)
	}
	return true, nil
}

func persistResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string, ttl time.Duration, rec *responseCapture, requestHash string) error {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	record := idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
		RequestHash: requestHash,
	}
	if ct := rec.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = store.SetNX(ctx, key, string(payload), ttl)
	return err
}

// requestScope namespaces stored records per user, method, and path so the
// same header value cannot collide across users or endpoints.
func requestScope(r *http.Request) string {
	userID := ""
	if id, ok := UserIDFromContext(r.Context()); ok {
		userID = id.String()
	}
	return strings.Join([]string{userID, r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// lookupGuard matches on the concrete URL path, not chi's RoutePattern: as a
// group middleware this runs before routing resolves, when the pattern is
// still the partial "/api/v1/*" mount and would never match the table.
func lookupGuard(r *http.Request) (time.Duration, bool) {
	path := r.URL.Path
	for _, route := range guardedRoutes {
		if route.method == r.Method && route.match(path) {
			return route.ttl, true
		}
	}
	return 0, false
}

func exactPath(want string) func(string) bool {
	return func(path string) bool { return path == want }
}

func pathAround(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
