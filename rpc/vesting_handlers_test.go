package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/lumos-codes-dev/dfv-sc-core/core/state"
	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
	"github.com/lumos-codes-dev/dfv-sc-core/storage"
)

const testSecret = "test-secret"

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech32Addr(fill byte) string {
	addr := testAddr(fill)
	return crypto.NewAddress(crypto.DFVPrefix, addr[:]).String()
}

type testEnv struct {
	handler http.Handler
}

func newTestEnv(t *testing.T, authEnabled bool) *testEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	vault := testAddr(0xAA)
	if err := manager.Mint(vault, "DFV", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := manager.SeedCategories([]*vesting.Category{{
		ID:                  vesting.CategorySeed,
		AllocationRemaining: big.NewInt(100_000),
		SlotsRemaining:      10,
		PerUnitAmount:       big.NewInt(1000),
		Schedule:            vesting.Schedule{PeriodSeconds: 2_592_000, PeriodCount: 12},
		InitialUnlockBps:    1000,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := vesting.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(manager)
	engine.SetVault(vault)
	engine.SetNowFunc(func() int64 { return 0 })

	auth := NewAuthenticator(AuthConfig{
		Enabled:    authEnabled,
		HMACSecret: testSecret,
		Issuer:     "dfv-gov",
	})
	server := NewServer(engine, auth, nil)
	return &testEnv{handler: server.Handler()}
}

func signToken(t *testing.T, scope string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   "dfv-gov",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (env *testEnv) call(t *testing.T, method string, params interface{}, token string) (*RPCResponse, int) {
	t.Helper()
	encodedParams, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{encodedParams},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	resp := new(RPCResponse)
	raw := json.RawMessage{}
	resp.Result = &raw
	if err := json.NewDecoder(rec.Body).Decode(resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, rec.Code
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	raw, ok := resp.Result.(*json.RawMessage)
	if !ok || raw == nil {
		t.Fatalf("response has no result: %+v", resp)
	}
	if err := json.Unmarshal(*raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestCreatePoolAndClaimRoundtrip(t *testing.T) {
	env := newTestEnv(t, false)
	beneficiary := bech32Addr(0x01)

	resp, status := env.call(t, "vesting_createPool", map[string]interface{}{
		"beneficiary":      beneficiary,
		"amount":           "1200",
		"start":            0,
		"periodSeconds":    2_592_000,
		"periodCount":      12,
		"initialUnlockBps": 1000,
	}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("create pool: status=%d err=%+v", status, resp.Error)
	}
	var pool poolJSON
	decodeResult(t, resp, &pool)
	if pool.Amount != "1200" || pool.Claimed != "0" {
		t.Fatalf("pool result: %+v", pool)
	}

	resp, status = env.call(t, "vesting_claimable", map[string]interface{}{"beneficiary": beneficiary}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("claimable: status=%d err=%+v", status, resp.Error)
	}
	var claimable amountResult
	decodeResult(t, resp, &claimable)
	if claimable.Amount != "120" {
		t.Fatalf("claimable: got %s want 120", claimable.Amount)
	}

	resp, status = env.call(t, "vesting_claim", map[string]interface{}{"beneficiary": beneficiary}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("claim: status=%d err=%+v", status, resp.Error)
	}
	var claimed amountResult
	decodeResult(t, resp, &claimed)
	if claimed.Amount != "120" {
		t.Fatalf("claim: got %s want 120", claimed.Amount)
	}

	// Nothing left right now: the claim error taxonomy distinguishes this
	// from an unknown beneficiary.
	resp, status = env.call(t, "vesting_claim", map[string]interface{}{"beneficiary": beneficiary}, "")
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeClaim {
		t.Fatalf("drained claim: status=%d err=%+v", status, resp.Error)
	}

	resp, status = env.call(t, "vesting_claim", map[string]interface{}{"beneficiary": bech32Addr(0x42)}, "")
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeClaim {
		t.Fatalf("unknown beneficiary claim: status=%d err=%+v", status, resp.Error)
	}

	resp, status = env.call(t, "vesting_getPools", map[string]interface{}{"beneficiary": beneficiary}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("get pools: status=%d err=%+v", status, resp.Error)
	}
	var pools []poolJSON
	decodeResult(t, resp, &pools)
	if len(pools) != 1 || pools[0].Claimed != "120" {
		t.Fatalf("get pools: %+v", pools)
	}
}

func TestCreateCategoryPoolOverRPC(t *testing.T) {
	env := newTestEnv(t, false)
	beneficiary := bech32Addr(0x02)

	resp, status := env.call(t, "vesting_createCategoryPool", map[string]interface{}{
		"category":    "seed",
		"beneficiary": beneficiary,
		"value":       "3",
		"start":       0,
	}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("create category pool: status=%d err=%+v", status, resp.Error)
	}
	var pool poolJSON
	decodeResult(t, resp, &pool)
	if pool.Amount != "3000" || pool.Category != "seed" {
		t.Fatalf("category pool result: %+v", pool)
	}

	resp, status = env.call(t, "vesting_getCategories", map[string]interface{}{}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("get categories: status=%d err=%+v", status, resp.Error)
	}
	var cats []categoryJSON
	decodeResult(t, resp, &cats)
	if len(cats) != 1 || cats[0].AllocationRemaining != "97000" || cats[0].SlotsRemaining != 9 {
		t.Fatalf("categories: %+v", cats)
	}
}

func TestBatchSizeLimitOverRPC(t *testing.T) {
	env := newTestEnv(t, false)
	items := make([]map[string]interface{}, vesting.MaxBatchSize+1)
	for i := range items {
		items[i] = map[string]interface{}{
			"beneficiary":   bech32Addr(byte(i + 1)),
			"value":         "10",
			"periodSeconds": 60,
			"periodCount":   6,
		}
	}
	resp, status := env.call(t, "vesting_createBatch", map[string]interface{}{"items": items}, "")
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeAllocation {
		t.Fatalf("oversized batch: status=%d err=%+v", status, resp.Error)
	}
	for _, i := range []int{0, len(items) / 2, len(items) - 1} {
		resp, status = env.call(t, "vesting_getPools", map[string]interface{}{
			"beneficiary": items[i]["beneficiary"],
		}, "")
		if status != http.StatusOK || resp.Error != nil {
			t.Fatalf("get pools: status=%d err=%+v", status, resp.Error)
		}
		var pools []poolJSON
		decodeResult(t, resp, &pools)
		if len(pools) != 0 {
			t.Fatalf("rejected batch created pools for item %d", i)
		}
	}
}

func TestCapabilityScopes(t *testing.T) {
	env := newTestEnv(t, true)
	beneficiary := bech32Addr(0x03)
	createParams := map[string]interface{}{
		"beneficiary":      beneficiary,
		"amount":           "100",
		"periodSeconds":    60,
		"periodCount":      6,
		"initialUnlockBps": 1000,
	}

	// No token: creation is forbidden.
	resp, status := env.call(t, "vesting_createPool", createParams, "")
	if status != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("unauthenticated create: status=%d err=%+v", status, resp.Error)
	}

	// Manager scope can create but not withdraw.
	managerToken := signToken(t, ScopeManager)
	resp, status = env.call(t, "vesting_createPool", createParams, managerToken)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("manager create: status=%d err=%+v", status, resp.Error)
	}
	withdrawParams := map[string]interface{}{
		"token":     "DFV",
		"recipient": bech32Addr(0xEE),
	}
	resp, status = env.call(t, "vesting_withdrawUnused", withdrawParams, managerToken)
	if status != http.StatusForbidden || resp.Error == nil {
		t.Fatalf("manager withdraw: status=%d err=%+v", status, resp.Error)
	}

	// Admin scope withdraws the unreserved remainder.
	adminToken := signToken(t, ScopeAdmin)
	resp, status = env.call(t, "vesting_withdrawUnused", withdrawParams, adminToken)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("admin withdraw: status=%d err=%+v", status, resp.Error)
	}
	var swept amountResult
	decodeResult(t, resp, &swept)
	if swept.Amount != "999900" {
		t.Fatalf("swept: got %s want 999900", swept.Amount)
	}

	// Tokens signed with the wrong key are rejected outright.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "dfv-gov",
		"scope": ScopeAdmin,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}
	resp, status = env.call(t, "vesting_withdrawUnused", withdrawParams, forged)
	if status != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("forged withdraw: status=%d err=%+v", status, resp.Error)
	}

	// Claiming stays open to everyone.
	resp, status = env.call(t, "vesting_claim", map[string]interface{}{"beneficiary": beneficiary}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("open claim: status=%d err=%+v", status, resp.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	resp, status := env.call(t, "vesting_selfDestruct", map[string]interface{}{}, "")
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: status=%d err=%+v", status, resp.Error)
	}
}

func TestInvalidParams(t *testing.T) {
	env := newTestEnv(t, false)
	cases := []struct {
		name   string
		params map[string]interface{}
	}{
		{"bad beneficiary", map[string]interface{}{"beneficiary": "nope", "amount": "10", "periodSeconds": 60, "periodCount": 6}},
		{"bad amount", map[string]interface{}{"beneficiary": bech32Addr(0x01), "amount": "ten", "periodSeconds": 60, "periodCount": 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, status := env.call(t, "vesting_createPool", tc.params, "")
			if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
				t.Fatalf("status=%d err=%+v", status, resp.Error)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("healthz body: %q", rec.Body.String())
	}
}
