package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/regrant/regrant-auth/adapters/store"
	"github.com/regrant/regrant-auth/adapters/tokenizer"
	userrepo "github.com/regrant/regrant-auth/adapters/users"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/eth"
	"github.com/regrant/regrant-auth/internal/siwe"
	"github.com/regrant/regrant-auth/metrics"
	"github.com/regrant/regrant-auth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	users  *userrepo.MemoryRepository
	tokens *tokenizer.JWTTokenizer
	svc    *service.AuthService
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()

	ts := &testServer{
		users:  userrepo.NewMemoryRepository(),
		tokens: tokenizer.NewJWTTokenizer([]byte("test-secret")),
	}
	ts.svc = service.NewAuthService(
		store.NewMemoryStore(5*time.Minute),
		siwe.NewVerifier(siwe.WithDomain("localhost")),
		ts.users,
		ts.tokens,
	)
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	ts.router = SetupRouter(ts.svc, cfg)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// loginBody fetches a nonce over HTTP and signs a message for it
func (ts *testServer) loginBody(t *testing.T, key *ecdsa.PrivateKey, addr common.Address) map[string]string {
	t.Helper()

	w := ts.do(t, http.MethodGet, "/api/v1/auth/siwe/nonce?wallet_address="+addr.Hex(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode(t, w)["nonce"].(string)

	raw := siwe.Format(&core.SiweMessage{
		Domain:   "localhost",
		Address:  addr.Hex(),
		URI:      "http://localhost",
		Version:  "1",
		ChainID:  1,
		Nonce:    nonce,
		IssuedAt: time.Now().UTC(),
	})
	sig, err := eth.SignText(key, []byte(raw))
	require.NoError(t, err)

	return map[string]string{
		"message":   raw,
		"signature": hexutil.Encode(sig),
		"address":   addr.Hex(),
		"nonce":     nonce,
	}
}

func (ts *testServer) login(t *testing.T, key *ecdsa.PrivateKey, addr common.Address) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", ts.loginBody(t, key, addr), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["access_token"].(string)
}

func TestNonce(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	_, addr := newWallet(t)

	w := ts.do(t, http.MethodGet, "/api/v1/auth/siwe/nonce?wallet_address="+addr.Hex(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, addr.Hex(), body["address"])
	assert.Len(t, body["nonce"], 32)
}

func TestNonce_InvalidAddress(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	for _, q := range []string{"", "?wallet_address=", "?wallet_address=0x123", "?wallet_address=0xZZ11111111111111111111111111111111111111"} {
		w := ts.do(t, http.MethodGet, "/api/v1/auth/siwe/nonce"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestLogin_Success(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", ts.loginBody(t, key, addr), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "bearer", body["token_type"])

	subject, err := ts.tokens.Validate(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, addr.Hex(), subject)
}

func TestLogin_FailuresAreGeneric(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	_, other := newWallet(t)

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"bad signature", func(b map[string]string) { b["signature"] = "0x" + b["signature"][4:] + "00" }},
		{"nonce mismatch", func(b map[string]string) { b["nonce"] = "other" }},
		{"address mismatch", func(b map[string]string) { b["address"] = other.Hex() }},
		{"malformed message", func(b map[string]string) { b["message"] = "hello" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ts.loginBody(t, key, addr)
			tt.mutate(body)

			w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", body, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, map[string]any{"detail": "SIWE verification failed"}, decode(t, w))
		})
	}
}

func TestLogin_Replay(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	body := ts.loginBody(t, key, addr)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_InactiveUser(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)

	u, err := ts.users.Create(context.Background(), core.NewWalletUser(addr.Hex()))
	require.NoError(t, err)
	require.NoError(t, ts.users.SetActive(context.Background(), u.ID, false))

	w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", ts.loginBody(t, key, addr), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Inactive user", decode(t, w)["detail"])
}

func TestLogin_InvalidBody(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	w := ts.do(t, http.MethodPost, "/api/v1/auth/siwe/login", map[string]string{"message": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	token := ts.login(t, key, addr)

	w := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, addr.Hex(), body["wallet_address"])
	assert.Equal(t, "student", body["role"])
	assert.Equal(t, true, body["is_active"])
	assert.Equal(t, false, body["is_superuser"])
}

func TestMe_Unauthenticated(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestMe_DisabledAfterLogin(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	token := ts.login(t, key, addr)

	u, err := ts.users.FindByAddress(context.Background(), addr.Hex())
	require.NoError(t, err)
	require.NoError(t, ts.users.SetActive(context.Background(), u.ID, false))

	w := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUser_RequiresSuperuser(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	ctx := context.Background()

	key, addr := newWallet(t)
	token := ts.login(t, key, addr)
	me, err := ts.users.FindByAddress(ctx, addr.Hex())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/v1/users/"+me.ID, nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminKey, adminAddr := newWallet(t)
	admin := core.NewWalletUser(adminAddr.Hex())
	admin.Role = core.RoleAdmin
	admin.IsSuperuser = true
	_, err = ts.users.Create(ctx, admin)
	require.NoError(t, err)
	adminToken := ts.login(t, adminKey, adminAddr)

	w = ts.do(t, http.MethodGet, "/api/v1/users/"+me.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, addr.Hex(), decode(t, w)["wallet_address"])

	w = ts.do(t, http.MethodGet, "/api/v1/users/does-not-exist", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	w := ts.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	ts := newTestServer(t, RouterConfig{Gatherer: reg, Metrics: collector})

	w := ts.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "regrant_auth_nonces_issued_total")

	noMetrics := newTestServer(t, RouterConfig{})
	w = noMetrics.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(PerMinute(2))
	t.Cleanup(rl.Stop)
	ts := newTestServer(t, RouterConfig{RateLimiter: rl})
	_, addr := newWallet(t)

	path := "/api/v1/auth/siwe/nonce?wallet_address=" + addr.Hex()
	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health checks are not limited
	w = ts.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(PerMinute(10))
	t.Cleanup(rl.Stop)

	rl.limiter("10.0.0.1")
	rl.limiter("10.0.0.2")
	require.Equal(t, 2, rl.Count())

	rl.cleanup(time.Now())
	assert.Equal(t, 2, rl.Count())

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, 0, rl.Count())
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	token := ts.login(t, key, addr)

	w := ts.do(t, http.MethodPatch, "/api/v1/users/me",
		map[string]string{"email": "ada@example.com", "full_name": "Ada Lovelace"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "Ada Lovelace", body["full_name"])

	w = ts.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", decode(t, w)["email"])
}

func TestUpdateMe_Rejections(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	key, addr := newWallet(t)
	token := ts.login(t, key, addr)

	w := ts.do(t, http.MethodPatch, "/api/v1/users/me", map[string]string{"email": "ada@example.com"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	otherKey, otherAddr := newWallet(t)
	otherToken := ts.login(t, otherKey, otherAddr)

	w = ts.do(t, http.MethodPatch, "/api/v1/users/me", map[string]string{"email": "ada@example.com"}, otherToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "The user with this email already exists in the system", decode(t, w)["detail"])

	w = ts.do(t, http.MethodPatch, "/api/v1/users/me", map[string]string{"email": "not-an-email"}, otherToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/v1/users/me", map[string]string{"full_name": "Eve"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
