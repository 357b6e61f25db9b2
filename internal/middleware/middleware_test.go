package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secissues/secissues-go/internal/model"
	"github.com/secissues/secissues-go/internal/ratelimit"
	"github.com/secissues/secissues-go/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"forwarded trimmed", map[string]string{"X-Forwarded-For": "  1.2.3.4  "}, "1.2.3.4"},
		{"forwarded beats real ip", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "5.6.7.8"}, "1.2.3.4"},
		{"empty forwarded falls back", map[string]string{"X-Forwarded-For": " , 1.2.3.4", "X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"nothing", nil, UnknownIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

type fakeResolver struct {
	user model.User
	err  error
}

func (f fakeResolver) Resolve(context.Context, string) (model.User, error) {
	return f.user, f.err
}

func TestBearerAuth(t *testing.T) {
	alice := model.User{ID: 1, Email: "alice@x.com"}

	tests := []struct {
		name     string
		header   string
		resolver fakeResolver
		want     int
	}{
		{"missing header", "", fakeResolver{user: alice}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fakeResolver{user: alice}, http.StatusUnauthorized},
		{"empty token", "Bearer ", fakeResolver{user: alice}, http.StatusUnauthorized},
		{"invalid token", "Bearer x", fakeResolver{err: service.ErrInvalidToken}, http.StatusUnauthorized},
		{"deleted user", "Bearer x", fakeResolver{err: service.ErrUserNotFound}, http.StatusUnauthorized},
		{"store down", "Bearer x", fakeResolver{err: service.ErrStoreUnavailable}, http.StatusServiceUnavailable},
		{"other error", "Bearer x", fakeResolver{err: errors.New("boom")}, http.StatusInternalServerError},
		{"valid", "Bearer x", fakeResolver{user: alice}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			BearerAuth(tt.resolver, discard)(next).ServeHTTP(w, r)

			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, alice.Email, got.Email)
			} else {
				assert.JSONEq(t, `{"error":"`+errorMessage(tt.want, tt.header)+`"}`, w.Body.String())
			}
		})
	}
}

func errorMessage(status int, header string) string {
	switch {
	case header == "":
		return "missing authorization header"
	case header == "Basic abc" || header == "Bearer ":
		return "invalid authorization format"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return "internal server error"
	}
}

type fakeAdmitter struct {
	decision ratelimit.Decision
	err      error
	ips      []string
}

func (f *fakeAdmitter) Admit(_ context.Context, ip string) (ratelimit.Decision, error) {
	f.ips = append(f.ips, ip)
	return f.decision, f.err
}

func TestGoverned_Allowed(t *testing.T) {
	adm := &fakeAdmitter{decision: ratelimit.Decision{Allowed: true, Count: 1, Limit: 3, Remaining: 2, ResetAt: time.Now().Add(time.Hour)}}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	w := httptest.NewRecorder()
	Governed(adm, false, discard)(okHandler()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"1.2.3.4"}, adm.ips)
}

func TestGoverned_Limited(t *testing.T) {
	adm := &fakeAdmitter{decision: ratelimit.Decision{Allowed: false, Count: 3, Limit: 3, ResetAt: time.Now().Add(90 * time.Second)}}

	w := httptest.NewRecorder()
	Governed(adm, false, discard)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, []string{UnknownIP}, adm.ips)
}

func TestGoverned_StoreDown(t *testing.T) {
	adm := &fakeAdmitter{err: ratelimit.ErrStoreUnavailable}

	w := httptest.NewRecorder()
	Governed(adm, false, discard)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"rate limiter unavailable"}`, w.Body.String())

	w = httptest.NewRecorder()
	Governed(adm, true, discard)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code, "fail-open should admit the request")
}

func TestBurstGuard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := BurstGuard(ctx, 0.001, 2, true)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.Header.Set("X-Real-IP", "1.2.3.4")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.Header.Set("X-Real-IP", "5.6.7.8")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code, "other clients keep their own bucket")
}

func TestBurstGuard_IgnoresForwardingHeadersByDefault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := BurstGuard(ctx, 0.001, 2, false)(okHandler())

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = "203.0.113.7:5000"
		r.Header.Set("X-Forwarded-For", spoofed)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.RemoteAddr = "198.51.100.9:5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code, "another connection keeps its own bucket")
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:5000"
	assert.Equal(t, "203.0.113.7", RemoteIP(r))

	r.RemoteAddr = "bare-host"
	assert.Equal(t, "bare-host", RemoteIP(r))
}

func TestIPRateLimiter_EvictIdle(t *testing.T) {
	rl := newIPRateLimiter(1, 1)
	rl.getLimiter("1.2.3.4")

	rl.evictIdle(time.Now())
	assert.Len(t, rl.visitors, 1)

	rl.evictIdle(time.Now().Add(2 * visitorIdle))
	assert.Empty(t, rl.visitors)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
