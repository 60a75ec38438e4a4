package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
	"github.com/lumos-codes-dev/dfv-sc-core/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeValidation = -32070
	codeAllocation = -32071
	codeBalance    = -32072
	codeClaim      = -32073
	codeNotFound   = -32074
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server exposes the vesting engine over JSON-RPC 2.0.
type Server struct {
	engine *vesting.Engine
	auth   *Authenticator
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(engine *vesting.Engine, auth *Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		auth:     auth,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler builds the HTTP routing surface: the RPC endpoint, health and
// prometheus metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	return r
}

func (s *Server) limiterFor(remote string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Second/20), 40)
		s.limiters[host] = limiter
	}
	return limiter
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !s.limiterFor(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate_limited", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}

	started := time.Now()
	switch req.Method {
	case "vesting_createPool":
		s.handleCreatePool(w, r, &req)
	case "vesting_createCategoryPool":
		s.handleCreateCategoryPool(w, r, &req)
	case "vesting_createBatch":
		s.handleCreateBatch(w, r, &req)
	case "vesting_claim":
		s.handleClaim(w, r, &req)
	case "vesting_claimable":
		s.handleClaimable(w, r, &req)
	case "vesting_getPools":
		s.handleGetPools(w, r, &req)
	case "vesting_getCategories":
		s.handleGetCategories(w, r, &req)
	case "vesting_withdrawUnused":
		s.handleWithdrawUnused(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	observability.Metrics().RequestLatency.
		WithLabelValues(req.Method).
		Observe(time.Since(started).Seconds())
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

// writeEngineError maps engine sentinels onto the RPC error taxonomy.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	status, code, message := http.StatusInternalServerError, codeServerError, "internal_error"
	switch {
	case errors.Is(err, vesting.ErrUnauthorized):
		status, code, message = http.StatusForbidden, codeUnauthorized, "forbidden"
	case errors.Is(err, vesting.ErrZeroBeneficiary),
		errors.Is(err, vesting.ErrInvalidAmount),
		errors.Is(err, vesting.ErrInvalidSchedule),
		errors.Is(err, vesting.ErrUnlockBpsTooHigh):
		status, code, message = http.StatusBadRequest, codeValidation, "validation_error"
	case errors.Is(err, vesting.ErrCategoryExhausted),
		errors.Is(err, vesting.ErrInsufficientAllocation),
		errors.Is(err, vesting.ErrNoParamsProvided),
		errors.Is(err, vesting.ErrBatchSizeExceedsLimit):
		status, code, message = http.StatusConflict, codeAllocation, "allocation_error"
	case errors.Is(err, vesting.ErrInsufficientBalance):
		status, code, message = http.StatusConflict, codeBalance, "balance_error"
	case errors.Is(err, vesting.ErrNoAllocationsFound),
		errors.Is(err, vesting.ErrZeroAmountToClaim),
		errors.Is(err, vesting.ErrNothingToWithdraw):
		status, code, message = http.StatusConflict, codeClaim, "claim_error"
	case errors.Is(err, vesting.ErrCategoryNotFound):
		status, code, message = http.StatusNotFound, codeNotFound, "not_found"
	}
	observability.Metrics().RequestFailures.
		WithLabelValues(req.Method, strconv.Itoa(code)).
		Inc()
	s.logger.Warn("rpc request failed", "method", req.Method, "code", code, "err", err)
	writeError(w, status, req.ID, code, message, err.Error())
}

func (s *Server) capabilities(r *http.Request) (vesting.Capability, *RPCError) {
	caps, err := s.auth.Capabilities(r)
	if err != nil {
		return 0, &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: err.Error()}
	}
	return caps, nil
}
