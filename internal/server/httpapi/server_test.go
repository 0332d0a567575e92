package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/observability"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type testEnv struct {
	server   *Server
	accounts *services.AccountService
	mailer   *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m := repomanager.NewMemoryRepositoryManager()
	hasher := credentials.NewBcryptHasher(bcrypt.MinCost)
	mailer := &recordingMailer{}
	logger := logging.Discard()
	cfg := &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	auth, err := services.NewAuthService(nil, m, hasher, cfg, logger)
	require.NoError(t, err)
	accounts := services.NewAccountService(nil, m, hasher, mailer, "http://example.com/reset", logger)

	return &testEnv{
		server:   NewServer(":0", auth, accounts, observability.NewMetrics(), logger),
		accounts: accounts,
		mailer:   mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) login(t *testing.T, email, password string) services.TokenPair {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, string(raw))

	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(raw, &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func (e *testEnv) superuser(t *testing.T) string {
	t.Helper()
	_, err := e.accounts.CreateSuperuser(context.Background(), services.AccountInput{
		Email: "admin@example.com", FullName: "Admin", Password: "adminpass",
	})
	require.NoError(t, err)
	return e.login(t, "admin@example.com", "adminpass").AccessToken
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestServer_Health(t *testing.T) {
	e := newTestEnv(t)
	status, raw := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestServer_Register(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, http.MethodPost, "/register", "", map[string]any{
		"email": "a@x.com", "full_name": "A", "password": "pw1", "is_superuser": true,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	created := decode[createdResponse](t, raw)
	assert.Equal(t, "user created successfully", created.Message)
	assert.NotEmpty(t, created.ID)

	// self-registration never grants admin rights
	token := e.login(t, "a@x.com", "pw1").AccessToken
	status, _ = e.do(t, http.MethodGet, "/user", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = e.do(t, http.MethodPost, "/register", "", map[string]any{
		"email": "A@X.com", "full_name": "B", "password": "pw2",
	})
	require.Equal(t, http.StatusBadRequest, status)
	fields := decode[map[string]string](t, raw)
	assert.Contains(t, fields, "email")
}

func TestServer_RegisterValidation(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, http.MethodPost, "/register", "", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, status)
	fields := decode[map[string]string](t, raw)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "full_name")
	assert.Contains(t, fields, "password")

	status, raw = e.do(t, http.MethodPost, "/register", "", "{not json")
	require.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"message":"malformed request body"}`, string(raw))
}

func TestServer_Login(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.accounts.Register(context.Background(), services.AccountInput{Email: "a@x.com", FullName: "A", Password: "pw1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"wrong password", map[string]string{"email": "a@x.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "b@x.com", "password": "pw1"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{}, http.StatusBadRequest},
		{"malformed", "[", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := e.do(t, http.MethodPost, "/login", "", tt.body)
			assert.Equal(t, tt.wantCode, status)
		})
	}

	t.Run("success", func(t *testing.T) {
		e.login(t, " A@X.com ", "pw1")
	})
}

func TestServer_Refresh(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.accounts.Register(context.Background(), services.AccountInput{Email: "a@x.com", FullName: "A", Password: "pw1"})
	require.NoError(t, err)
	pair := e.login(t, "a@x.com", "pw1")

	status, raw := e.do(t, http.MethodPost, "/token/refresh", "", map[string]string{"refresh": pair.RefreshToken})
	require.Equal(t, http.StatusOK, status, string(raw))
	fresh := decode[services.TokenPair](t, raw)
	assert.NotEmpty(t, fresh.AccessToken)

	status, _ = e.do(t, http.MethodPost, "/token/refresh", "", map[string]string{"refresh": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = e.do(t, http.MethodPost, "/token/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode[map[string]string](t, raw), "refresh")
}

func TestServer_AdminRoutesRequireAuthentication(t *testing.T) {
	e := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/user"},
		{http.MethodPost, "/user"},
		{http.MethodGet, "/user/some-id"},
		{http.MethodPatch, "/user/some-id"},
		{http.MethodDelete, "/user/some-id"},
	}

	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			status, _ := e.do(t, r.method, r.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, status)

			status, _ = e.do(t, r.method, r.path, "garbage", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestServer_NonAdminForbiddenBeforeValidation(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.accounts.Register(context.Background(), services.AccountInput{Email: "a@x.com", FullName: "A", Password: "pw1"})
	require.NoError(t, err)
	token := e.login(t, "a@x.com", "pw1").AccessToken

	status, raw := e.do(t, http.MethodPost, "/user", token, "{broken")
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"message":"you do not have permission to perform this action"}`, string(raw))

	status, _ = e.do(t, http.MethodGet, "/user/does-not-exist", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestServer_AdminLifecycle(t *testing.T) {
	e := newTestEnv(t)
	admin := e.superuser(t)

	status, raw := e.do(t, http.MethodPost, "/user", admin, map[string]any{
		"email": "b@x.com", "full_name": "B", "password": "pw", "is_staff": true,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	id := decode[createdResponse](t, raw).ID

	status, raw = e.do(t, http.MethodGet, "/user", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(raw), "password")
	list := decode[[]accountView](t, raw)
	require.Len(t, list, 2)

	status, raw = e.do(t, http.MethodGet, "/user/"+id, admin, nil)
	require.Equal(t, http.StatusOK, status)
	view := decode[accountView](t, raw)
	assert.Equal(t, "b@x.com", view.Email)
	assert.True(t, view.IsStaff)
	assert.False(t, view.IsSuperuser)
	assert.True(t, view.Status)

	status, raw = e.do(t, http.MethodPatch, "/user/"+id, admin, map[string]string{"full_name": "Bee", "password": "pw2"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"message":"user updated successfully"}`, string(raw))

	_, raw = e.do(t, http.MethodGet, "/user/"+id, admin, nil)
	assert.Equal(t, "Bee", decode[accountView](t, raw).FullName)
	e.login(t, "b@x.com", "pw2")

	status, raw = e.do(t, http.MethodPatch, "/user/"+id, admin, map[string]string{"email": "admin@example.com"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode[map[string]string](t, raw), "email")

	status, raw = e.do(t, http.MethodDelete, "/user/"+id, admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"user deleted successfully"}`, string(raw))

	status, _ = e.do(t, http.MethodGet, "/user/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = e.do(t, http.MethodDelete, "/user/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "b@x.com", "password": "pw2"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"message":"account is not active"}`, string(raw))
}

func TestServer_DeactivatedAdminLosesAccess(t *testing.T) {
	e := newTestEnv(t)
	admin := e.superuser(t)

	_, raw := e.do(t, http.MethodGet, "/user", admin, nil)
	id := decode[[]accountView](t, raw)[0].ID

	status, _ := e.do(t, http.MethodDelete, "/user/"+id, admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodGet, "/user", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_PasswordEmail(t *testing.T) {
	e := newTestEnv(t)
	a, err := e.accounts.Register(context.Background(), services.AccountInput{Email: "a@x.com", FullName: "Ann", Password: "pw1"})
	require.NoError(t, err)

	status, raw := e.do(t, http.MethodPost, "/password-email", "", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"message":"recovery email sent"}`, string(raw))
	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "a@x.com", e.mailer.sent[0].To)
	assert.Contains(t, e.mailer.sent[0].Body, "http://example.com/reset/"+a.ID+"/")

	status, raw = e.do(t, http.MethodPost, "/password-email", "", map[string]string{"email": "ghost@x.com"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode[map[string]string](t, raw), "email")

	e.mailer.err = errors.New("smtp down")
	status, raw = e.do(t, http.MethodPost, "/password-email", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"message":"unable to send email"}`, string(raw))
}

func TestServer_Metrics(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "x"})

	status, raw := e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `gophaccounts_logins_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, string(raw), `gophaccounts_http_requests_total{route="/login",status="401"} 1`)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	e := newTestEnv(t)
	e.server.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
