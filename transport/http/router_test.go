package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/adapters/events"
	"github.com/lumenpay/lumenvault/adapters/store"
	"github.com/lumenpay/lumenvault/adapters/tokenizer"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/service"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockNetwork struct {
	mock.Mock
}

func (m *mockNetwork) Passphrase() string {
	return "Test SDF Network ; September 2015"
}

func (m *mockNetwork) BuildPayment(ctx context.Context, p core.Payment) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func (m *mockNetwork) Submit(ctx context.Context, signedXDR string) (core.SubmitResult, error) {
	args := m.Called(signedXDR)
	return args.Get(0).(core.SubmitResult), args.Error(1)
}

func (m *mockNetwork) Balances(ctx context.Context, publicKey string) (core.Balances, error) {
	args := m.Called(publicKey)
	return args.Get(0).(core.Balances), args.Error(1)
}

type testServer struct {
	router  *gin.Engine
	svc     *service.AuthService
	network *mockNetwork
	now     time.Time
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{network: &mockNetwork{}, now: time.Now()}
	tok := tokenizer.NewJWTTokenizer([]byte("secret"), "lumenpay-test")
	ts.svc = service.NewAuthService(tok, store.NewMemoryNonceStore(), store.NewMemoryUserStore(), events.NopPublisher{}).
		WithClock(func() time.Time { return ts.now })
	opts.Network = ts.network
	router, err := SetupRouter(ts.svc, opts)
	require.NoError(t, err)
	ts.router = router
	return ts
}

func (ts *testServer) do(method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (ts *testServer) login(t *testing.T, kp *keypair.Full) string {
	t.Helper()
	w := ts.do(http.MethodGet, "/auth/nonce?publicKey="+kp.Address(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode(t, w)["nonce"].(string)

	sig, err := kp.SignBase64([]byte(nonce))
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/auth/verify", gin.H{"publicKey": kp.Address(), "signature": sig, "nonce": nonce}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["token"].(string)
}

func TestNonceEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	kp := keypair.MustRandom()

	w := ts.do(http.MethodGet, "/auth/nonce?publicKey="+kp.Address(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	nonce := body["nonce"].(string)
	assert.Len(t, nonce, 64)
	assert.Equal(t, service.MessagePrefix+nonce, body["message"])
	assert.NotEmpty(t, body["expiresAt"])

	for _, path := range []string{"/auth/nonce", "/auth/nonce?publicKey=GBAD", "/auth/nonce?publicKey=" + kp.Seed()} {
		w := ts.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	kp := keypair.MustRandom()

	w := ts.do(http.MethodGet, "/auth/nonce?publicKey="+kp.Address(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode(t, w)["nonce"].(string)

	other := keypair.MustRandom()
	badSig, err := other.SignBase64([]byte(nonce))
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/auth/verify", gin.H{"publicKey": kp.Address(), "signature": badSig, "nonce": nonce}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid signature", decode(t, w)["error"])

	sig, err := kp.SignBase64([]byte(nonce))
	require.NoError(t, err)
	req := gin.H{"publicKey": kp.Address(), "signature": sig, "nonce": nonce}

	w = ts.do(http.MethodPost, "/auth/verify", req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, kp.Address(), user["publicKey"])
	assert.Equal(t, true, user["isNew"])

	w = ts.do(http.MethodPost, "/auth/verify", req, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Nonce not found")

	w = ts.do(http.MethodPost, "/auth/verify", gin.H{"publicKey": kp.Address()}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyExpired(t *testing.T) {
	ts := newTestServer(t, Options{})
	kp := keypair.MustRandom()

	w := ts.do(http.MethodGet, "/auth/nonce?publicKey="+kp.Address(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode(t, w)["nonce"].(string)

	ts.now = ts.now.Add(11 * time.Minute)
	sig, err := kp.SignBase64([]byte(nonce))
	require.NoError(t, err)

	w = ts.do(http.MethodPost, "/auth/verify", gin.H{"publicKey": kp.Address(), "signature": sig, "nonce": nonce}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Nonce expired")
}

func TestSessionEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	kp := keypair.MustRandom()
	token := ts.login(t, kp)

	w := ts.do(http.MethodGet, "/api/session", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, kp.Address(), body["publicKey"])
	assert.NotEmpty(t, body["userId"])

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not-a-jwt"} {
		w := ts.do(http.MethodGet, "/api/session", nil, map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}

	ts.now = ts.now.Add(-8 * 24 * time.Hour)
	expired, _, err := ts.svc.IssueSessionToken(kp.Address(), "user")
	require.NoError(t, err)
	w = ts.do(http.MethodGet, "/api/session", nil, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", decode(t, w)["error"])
}

func TestCleanupEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{CleanupToken: "cron-secret"})

	for i := 0; i < 3; i++ {
		w := ts.do(http.MethodGet, "/auth/nonce?publicKey="+keypair.MustRandom().Address(), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(http.MethodGet, "/auth/cleanup", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ts.now = ts.now.Add(time.Hour)
	w = ts.do(http.MethodGet, "/auth/cleanup", nil, map[string]string{"X-Cleanup-Token": "cron-secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["cleaned"])

	w = ts.do(http.MethodGet, "/auth/cleanup", nil, map[string]string{"X-Cleanup-Token": "cron-secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["cleaned"])
}

func TestBuildTransactionEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	kp := keypair.MustRandom()
	dest := keypair.MustRandom().Address()
	token := ts.login(t, kp)
	auth := map[string]string{"Authorization": "Bearer " + token}

	ts.network.On("BuildPayment", core.Payment{
		Source: kp.Address(), Destination: dest, Amount: "10", Asset: "usdc", Memo: "rent",
	}).Return("AAAAunsigned", nil)

	w := ts.do(http.MethodPost, "/api/wallet/tx/build", gin.H{"destination": dest, "amount": "10", "asset": "usdc", "memo": "rent"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "AAAAunsigned", body["transaction"])
	assert.Equal(t, ts.network.Passphrase(), body["networkPassphrase"])

	ts.network.On("BuildPayment", mock.MatchedBy(func(p core.Payment) bool { return p.Amount == "-1" })).
		Return("", core.ErrInvalidAmount)
	w = ts.do(http.MethodPost, "/api/wallet/tx/build", gin.H{"destination": dest, "amount": "-1"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/wallet/tx/build", gin.H{"destination": dest, "amount": "1", "asset": "btc"}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/wallet/tx/build", gin.H{"destination": dest, "amount": "1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitTransactionEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, keypair.MustRandom())
	auth := map[string]string{"Authorization": "Bearer " + token}

	ts.network.On("Submit", "AAAAgood").Return(core.SubmitResult{Hash: "h1", Ledger: 9}, nil)
	ts.network.On("Submit", "AAAAbad").Return(core.SubmitResult{}, &core.SubmitError{
		TransactionCode: "tx_failed",
		OperationCodes:  []string{"op_no_destination"},
	})
	ts.network.On("Submit", "AAAAdown").Return(core.SubmitResult{}, core.ErrNetwork)

	w := ts.do(http.MethodPost, "/api/wallet/tx/submit", gin.H{"signedXdr": "AAAAgood"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "h1", body["hash"])
	assert.Equal(t, float64(9), body["ledger"])

	w = ts.do(http.MethodPost, "/api/wallet/tx/submit", gin.H{"signedXdr": "AAAAbad"}, auth)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, "tx_failed", body["transactionCode"])
	assert.Equal(t, []interface{}{"op_no_destination"}, body["operationCodes"])

	w = ts.do(http.MethodPost, "/api/wallet/tx/submit", gin.H{"signedXdr": "AAAAdown"}, auth)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestBalanceEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	funded := keypair.MustRandom()
	unfunded := keypair.MustRandom()

	ts.network.On("Balances", funded.Address()).Return(core.Balances{
		Native: "100.0000000",
		USDC:   "7.5000000",
		Assets: []core.AssetBalance{{Code: "USDC", Issuer: "GISSUER", Balance: "7.5000000"}},
	}, nil)
	ts.network.On("Balances", unfunded.Address()).Return(core.Balances{}, core.ErrAccountNotFound)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/wallet/balance", nil, nil).Code)

	auth := map[string]string{"Authorization": "Bearer " + ts.login(t, funded)}
	w := ts.do(http.MethodGet, "/api/wallet/balance", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "100.0000000", body["native"])
	assert.Equal(t, "7.5000000", body["usdc"])
	assert.Len(t, body["assets"], 1)

	auth = map[string]string{"Authorization": "Bearer " + ts.login(t, unfunded)}
	w = ts.do(http.MethodGet, "/api/wallet/balance", nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Account not found", decode(t, w)["error"])
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{AuthRate: 1, AuthBurst: 2})
	path := "/auth/nonce?publicKey=" + keypair.MustRandom().Address()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, ts.do(http.MethodGet, path, nil, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, nil).Code)
}

func TestRateLimitIgnoresForwardedForFromClients(t *testing.T) {
	ts := newTestServer(t, Options{AuthRate: 1, AuthBurst: 2})
	path := "/auth/nonce?publicKey=" + keypair.MustRandom().Address()

	limited := 0
	for i := 0; i < 50; i++ {
		w := ts.do(http.MethodGet, path, nil, map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)})
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.GreaterOrEqual(t, limited, 47)
}

func TestRateLimitTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1
	ts := newTestServer(t, Options{AuthRate: 0.001, AuthBurst: 1, TrustedProxies: []string{"192.0.2.0/24"}})
	path := "/auth/nonce?publicKey=" + keypair.MustRandom().Address()

	for i := 0; i < 5; i++ {
		w := ts.do(http.MethodGet, path, nil, map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i)})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := ts.do(http.MethodGet, path, nil, map[string]string{"X-Forwarded-For": "203.0.113.0"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSetupRouterRejectsBadProxy(t *testing.T) {
	_, err := SetupRouter(nil, Options{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}

func TestRateLimiterEvictsLeastRecent(t *testing.T) {
	limiter := newRateLimiter(0.001, 1, 2)

	require.True(t, limiter.Limit("a").Allow())
	require.True(t, limiter.Limit("b").Allow())
	assert.False(t, limiter.Limit("a").Allow())

	// c evicts b, the least recently seen; a keeps its drained bucket
	require.True(t, limiter.Limit("c").Allow())
	assert.False(t, limiter.Limit("a").Allow())
	assert.True(t, limiter.Limit("b").Allow())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.login(t, keypair.MustRandom())

	w := ts.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	text := w.Body.String()
	assert.True(t, strings.Contains(text, "lumenpay_auth_nonces_issued_total 1"))
	assert.True(t, strings.Contains(text, `lumenpay_auth_verifications_total{result="ok"} 1`))
	assert.Contains(t, text, "lumenpay_http_request_duration_seconds")
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidPublicKey, http.StatusBadRequest},
		{core.ErrNonceExpired, http.StatusUnauthorized},
		{core.ErrMalformedTransaction, http.StatusBadRequest},
		{core.ErrStore, http.StatusInternalServerError},
		{core.ErrSessionExpired, http.StatusUnauthorized},
		{core.ErrNetwork, http.StatusBadGateway},
		{core.ErrAccountNotFound, http.StatusNotFound},
		{core.ErrInvalidSettings, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
	assert.Equal(t, "Internal server error", messageFor(core.ErrStore))
}
