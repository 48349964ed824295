package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
	auth.BcryptCost = bcrypt.MinCost
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *dto.ErrorDetail `json:"error"`
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c *client) call(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (c *client) data(env envelope, into interface{}) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(env.Data, into))
}

func (c *client) login(username, password string) string {
	c.t.Helper()
	status, env := c.call(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: username, Password: password})
	require.Equal(c.t, http.StatusOK, status)
	var out dto.AuthResponse
	c.data(env, &out)
	require.NotEmpty(c.t, out.Token.AccessToken)
	return out.Token.AccessToken
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.ShutdownTimeout = "1s"
	cfg.Database.Driver = config.DriverMemory
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiration = "1h"
	cfg.JWT.RefreshTokenExpiration = "2h"
	cfg.JWT.Issuer = "libris-test"
	cfg.Admin.Username = "admin"
	cfg.Admin.Password = "Adm1n!pass"
	cfg.Seed.Streams = []string{"Science", "Arts"}
	return cfg
}

func newTestClient(t *testing.T) *client {
	t.Helper()
	app, err := NewApp(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(app.Storage.Close)
	return &client{t: t, router: app.Router}
}

func TestLendingFlowOverHTTP(t *testing.T) {
	c := newTestClient(t)

	// Sign-up leaves the account waiting for approval
	status, env := c.call(http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "Abcdef1!", Password2: "Abcdef1!",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var reg dto.RegisterResponse
	c.data(env, &reg)
	assert.Regexp(t, `^roll[a-z0-9]{8}$`, reg.RollNo)
	assert.Equal(t, "Strong", reg.PasswordStrength)

	status, env = c.call(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Username: "alice", Password: "Abcdef1!"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, dto.ErrorCodeAccountDisabled, env.Error.Code)

	admin := c.login("admin", "Adm1n!pass")

	status, _ = c.call(http.MethodPatch, "/api/v1/admin/students/"+reg.RollNo+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, status)

	// Catalog
	status, env = c.call(http.MethodPost, "/api/v1/authors", admin, dto.CreateAuthorRequest{Name: "Frank Herbert"})
	require.Equal(t, http.StatusCreated, status)
	var author struct{ ID int64 }
	c.data(env, &author)

	qty := 1
	status, env = c.call(http.MethodPost, "/api/v1/books", admin, dto.CreateBookRequest{Title: "Dune", AuthorID: author.ID, Quantity: &qty})
	require.Equal(t, http.StatusCreated, status)
	var book dto.BookResponse
	c.data(env, &book)
	assert.True(t, book.Available)

	alice := c.login("alice", "Abcdef1!")

	status, env = c.call(http.MethodPost, "/api/v1/books", alice, dto.CreateBookRequest{Title: "Mine", AuthorID: author.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, dto.ErrorCodeForbidden, env.Error.Code)

	// Request, approve, return
	status, env = c.call(http.MethodPost, "/api/v1/book-requests", alice, dto.CreateBookRequestsRequest{BookIDs: []int64{book.ID}})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var created []dto.BookRequestResponse
	c.data(env, &created)
	require.Len(t, created, 1)
	requestPath := fmt.Sprintf("/api/v1/book-requests/%d", created[0].ID)

	status, env = c.call(http.MethodPost, "/api/v1/book-requests", alice, dto.CreateBookRequestsRequest{BookIDs: []int64{book.ID}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, dto.ErrorCode("ALREADY_PENDING"), env.Error.Code)

	status, env = c.call(http.MethodPatch, requestPath+"/approve", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = c.call(http.MethodPatch, requestPath+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var approved dto.BookRequestResponse
	c.data(env, &approved)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ReturnDueDate)

	status, env = c.call(http.MethodGet, fmt.Sprintf("/api/v1/books/%d", book.ID), alice, nil)
	require.Equal(t, http.StatusOK, status)
	c.data(env, &book)
	assert.Equal(t, 0, book.Quantity)
	assert.False(t, book.Available)

	status, env = c.call(http.MethodPatch, requestPath+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, dto.ErrorCode("ALREADY_APPROVED"), env.Error.Code)

	status, env = c.call(http.MethodPatch, requestPath+"/return", alice, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = c.call(http.MethodGet, fmt.Sprintf("/api/v1/books/%d", book.ID), alice, nil)
	require.Equal(t, http.StatusOK, status)
	c.data(env, &book)
	assert.Equal(t, 1, book.Quantity)

	status, env = c.call(http.MethodGet, "/api/v1/book-requests", alice, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []dto.BookRequestResponse
	c.data(env, &mine)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsReturned)
	assert.False(t, mine[0].IsOverdue)

	// Deleting the student clears their history
	status, _ = c.call(http.MethodDelete, "/api/v1/admin/students/"+reg.RollNo, admin, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = c.call(http.MethodGet, "/api/v1/book-requests", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCatalogRequiresAuthentication(t *testing.T) {
	c := newTestClient(t)

	for _, path := range []string{"/api/v1/streams", "/api/v1/authors", "/api/v1/books", "/api/v1/books/1", "/api/v1/book-requests"} {
		status, env := c.call(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, dto.ErrorCodeUnauthorized, env.Error.Code, path)
	}

	admin := c.login("admin", "Adm1n!pass")

	status, env := c.call(http.MethodGet, "/api/v1/streams", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var streams []struct{ Name string }
	c.data(env, &streams)
	assert.Len(t, streams, 2)

	status, env = c.call(http.MethodGet, "/api/v1/books?stream=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dto.ErrorCodeValidationFailed, env.Error.Code)

	status, _ = c.call(http.MethodGet, "/api/v1/books/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = c.call(http.MethodGet, "/api/v1/books/42", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, dto.ErrorCodeResourceNotFound, env.Error.Code)
}

func TestPublicEndpoints(t *testing.T) {
	c := newTestClient(t)

	status, env := c.call(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dto.ErrorCodeValidationFailed, env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
