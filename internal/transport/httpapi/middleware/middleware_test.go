package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTMiddleware(t *testing.T) {
	svc := middleware.NewJWTService(testSecret)
	userID := uuid.New()

	valid, err := svc.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	expired, err := svc.GenerateToken(userID, -time.Minute)
	require.NoError(t, err)
	foreign, err := middleware.NewJWTService("another-secret-another-secret-123").GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	noUser, err := svc.GenerateToken(uuid.Nil, time.Hour)
	require.NoError(t, err)

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := middleware.JWTMiddleware(svc)(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer " + valid, status: http.StatusNoContent},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "signed with another secret", header: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "nil user id", header: "Bearer " + noUser, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, userID, seen)
				return
			}
			assert.Equal(t, uuid.Nil, seen)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
		})
	}
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	svc := middleware.NewJWTService(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &middleware.Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestWithUserID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	got, ok := middleware.GetUserIDFromContext(middleware.WithUserID(req.Context(), id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = middleware.GetUserIDFromContext(req.Context())
	assert.False(t, ok)
}

func TestRateLimiter(t *testing.T) {
	// one token, effectively never refilled during the test
	rl := middleware.NewRateLimiter(0.001, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("").Code)

	rec := send("")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)

	// the first forwarded hop is a separate client with its own bucket
	assert.Equal(t, http.StatusOK, send("203.0.113.7, 10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7").Code)
}

func TestRecovery(t *testing.T) {
	log := logger.New("test", io.Discard)
	h := middleware.Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	h := middleware.CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/accounts/1", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	rec = preflight("https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger_RecordsRouteAndErrorCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(&buf, logger.Options{Env: "test", Format: "json"})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Get("/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"account not found","code":"NOT_FOUND"}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/accounts/{id}", line["route"])
	assert.Equal(t, "/accounts/42", line["path"])
	assert.Equal(t, "NOT_FOUND", line["code"])
	assert.Equal(t, "account not found", line["error"])
	assert.Equal(t, rec.Header().Get("X-Request-Id"), line["request_id"])
}
