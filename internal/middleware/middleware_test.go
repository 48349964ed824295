package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories/memory"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorDetail {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}

func TestHandleAPIError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"validation", apperrors.NewValidationError("bad"), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"weak password", apperrors.NewWeakPasswordError("Weak"), http.StatusBadRequest, apperrors.CodeWeakPassword},
		{"credentials", apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials},
		{"expired", apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
		{"wrapped token", fmt.Errorf("%w: signature", apperrors.ErrTokenInvalid), http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
		{"disabled", apperrors.ErrAccountDisabled, http.StatusForbidden, dto.ErrorCodeAccountDisabled},
		{"forbidden", apperrors.NewForbiddenError("no"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{"not found", apperrors.NewResourceNotFoundError("Book not found"), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"already approved", apperrors.ErrAlreadyApproved, http.StatusConflict, apperrors.CodeAlreadyApproved},
		{"unavailable", fmt.Errorf("approving: %w", apperrors.ErrBookUnavailable), http.StatusConflict, apperrors.CodeBookUnavailable},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleAPIError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHandleAPIError_KeepsSpecificMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleAPIError(c, apperrors.NewAlreadyPendingError([]string{"Dune"}))

	detail := decodeError(t, w)
	assert.Equal(t, "Already requested: Dune", detail.Message)
	assert.NotNil(t, detail.Details)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleAPIError(c, errors.New("pq: secret table name"))
	assert.Equal(t, "Internal server error", decodeError(t, w).Message)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrorCodeInternalServer, decodeError(t, w).Code)
}

func TestTokenBucket_Refill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewTokenBucket(60, 2)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.1.1.1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "2.2.2.2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "1.1.1.1")
	assert.True(t, ok, "one token per second at 60/min")
	ok, _ = l.Allow(ctx, "1.1.1.1")
	assert.False(t, ok)
}

func TestTokenBucket_EvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewTokenBucket(60, 2)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		ok, err := l.Allow(ctx, ip)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, l.state, 3)

	now = now.Add(time.Second)
	_, _ = l.Allow(ctx, "1.1.1.1")
	assert.Len(t, l.state, 3, "not idle long enough to refill")

	now = now.Add(1500 * time.Millisecond)
	_, _ = l.Allow(ctx, "4.4.4.4")
	assert.Len(t, l.state, 2)
	assert.Contains(t, l.state, "1.1.1.1")
	assert.Contains(t, l.state, "4.4.4.4")

	// an evicted client comes back with a full bucket
	for i := 0; i < 2; i++ {
		ok, _ := l.Allow(ctx, "2.2.2.2")
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "2.2.2.2")
	assert.False(t, ok)
}

func TestRateLimit_Rejects(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewTokenBucket(1, 1), zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrorCodeRateLimited, decodeError(t, w).Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpenWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.Use(RateLimit(NewRedisWindow(client, 1), zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRegisterValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type body struct {
		Username string `json:"username" binding:"required,username"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			RespondBindingError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	post := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, post(`{"username":"alice.b+1@x"}`).Code)

	w := post(`{"username":"has space"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, dto.ErrorCodeValidationFailed, detail.Code)
	assert.Equal(t, "Username", detail.Field)

	w = post(`{not json`)
	assert.Equal(t, dto.ErrorCodeBadRequest, decodeError(t, w).Code)
}

type authFixture struct {
	router *gin.Engine
	jwt    *auth.JWTService
	store  *memory.Store
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := memory.NewStore()
	jwt := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "libris-test",
	})
	m := NewAuthMiddleware(jwt, authz.NewPrincipalLoader(store.Repos()))

	r := gin.New()
	r.GET("/me", m.JWTAuth(), func(c *gin.Context) {
		p := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"username": p.Username, "staff": p.IsStaff})
	})
	return &authFixture{router: r, jwt: jwt, store: store}
}

func (f *authFixture) get(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	active := &models.User{Username: "librarian", IsStaff: true, IsActive: true}
	require.NoError(t, f.store.Repos().Users.Create(ctx, active))
	disabled := &models.User{Username: "ghost", IsStudent: true}
	require.NoError(t, f.store.Repos().Users.Create(ctx, disabled))

	pair, err := f.jwt.GenerateTokenPair(active.ID, active.Username)
	require.NoError(t, err)

	w := f.get("Bearer " + pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"librarian","staff":true}`, w.Body.String())

	w = f.get("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeUnauthorized, decodeError(t, w).Code)

	w = f.get("Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.get("Bearer " + pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens cannot authenticate requests")

	ghostPair, err := f.jwt.GenerateTokenPair(disabled.ID, disabled.Username)
	require.NoError(t, err)
	w = f.get("Bearer " + ghostPair.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeAccountDisabled, decodeError(t, w).Code)

	orphan, err := f.jwt.GenerateTokenPair(9999, "nobody")
	require.NoError(t, err)
	w = f.get("Bearer " + orphan.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
