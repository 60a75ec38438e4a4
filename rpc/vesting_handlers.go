package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
	"github.com/lumos-codes-dev/dfv-sc-core/observability"
)

type createPoolParams struct {
	Funder           string `json:"funder"`
	Beneficiary      string `json:"beneficiary"`
	Amount           string `json:"amount"`
	Start            int64  `json:"start"`
	CliffSeconds     uint64 `json:"cliffSeconds"`
	PeriodSeconds    uint64 `json:"periodSeconds"`
	PeriodCount      uint64 `json:"periodCount"`
	InitialUnlockBps uint32 `json:"initialUnlockBps"`
}

type createCategoryPoolParams struct {
	Funder      string `json:"funder"`
	Category    string `json:"category"`
	Beneficiary string `json:"beneficiary"`
	// Value is the multiplier for per-unit tiers and the grant amount for
	// the direct-amount tier.
	Value string `json:"value"`
	Start int64  `json:"start"`
}

type batchItemParams struct {
	Beneficiary      string `json:"beneficiary"`
	Category         string `json:"category,omitempty"`
	Value            string `json:"value"`
	Start            int64  `json:"start"`
	CliffSeconds     uint64 `json:"cliffSeconds,omitempty"`
	PeriodSeconds    uint64 `json:"periodSeconds,omitempty"`
	PeriodCount      uint64 `json:"periodCount,omitempty"`
	InitialUnlockBps uint32 `json:"initialUnlockBps,omitempty"`
}

type createBatchParams struct {
	Funder string            `json:"funder"`
	Items  []batchItemParams `json:"items"`
}

type beneficiaryParams struct {
	Beneficiary string `json:"beneficiary"`
}

type withdrawUnusedParams struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
}

type poolJSON struct {
	ID               string `json:"id"`
	Beneficiary      string `json:"beneficiary"`
	Amount           string `json:"amount"`
	Start            int64  `json:"start"`
	CliffSeconds     uint64 `json:"cliffSeconds"`
	PeriodSeconds    uint64 `json:"periodSeconds"`
	PeriodCount      uint64 `json:"periodCount"`
	InitialUnlockBps uint32 `json:"initialUnlockBps"`
	Claimed          string `json:"claimed"`
	Category         string `json:"category,omitempty"`
	CreatedAt        int64  `json:"createdAt"`
}

type categoryJSON struct {
	Name                string `json:"name"`
	AllocationRemaining string `json:"allocationRemaining"`
	SlotsRemaining      uint64 `json:"slotsRemaining"`
	PerUnit             string `json:"perUnit,omitempty"`
	DirectAmount        bool   `json:"directAmount"`
	CliffSeconds        uint64 `json:"cliffSeconds"`
	PeriodSeconds       uint64 `json:"periodSeconds"`
	PeriodCount         uint64 `json:"periodCount"`
	InitialUnlockBps    uint32 `json:"initialUnlockBps"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

func poolToJSON(p *vesting.Pool) poolJSON {
	return poolJSON{
		ID:               hex.EncodeToString(p.ID[:]),
		Beneficiary:      crypto.NewAddress(crypto.DFVPrefix, p.Beneficiary[:]).String(),
		Amount:           p.Amount.String(),
		Start:            p.Start,
		CliffSeconds:     p.Schedule.CliffSeconds,
		PeriodSeconds:    p.Schedule.PeriodSeconds,
		PeriodCount:      p.Schedule.PeriodCount,
		InitialUnlockBps: p.InitialUnlockBps,
		Claimed:          p.Claimed.String(),
		Category:         p.Category.String(),
		CreatedAt:        p.CreatedAt,
	}
}

func parseAddressParam(value, field string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseOptionalAddressParam(value, field string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddressParam(value, field)
}

func parseAmountParam(value, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	return v, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caps, authErr := s.capabilities(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createPoolParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddressParam(params.Beneficiary, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	funder, err := parseOptionalAddressParam(params.Funder, "funder")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	schedule := vesting.Schedule{
		CliffSeconds:  params.CliffSeconds,
		PeriodSeconds: params.PeriodSeconds,
		PeriodCount:   params.PeriodCount,
	}
	pool, err := s.engine.CreatePool(caps, funder, beneficiary, amount, params.Start, schedule, params.InitialUnlockBps)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.recordReservation(pool)
	writeResult(w, req.ID, poolToJSON(pool))
}

func (s *Server) handleCreateCategoryPool(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caps, authErr := s.capabilities(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createCategoryPoolParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	categoryID, err := vesting.ParseCategoryID(params.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddressParam(params.Beneficiary, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	funder, err := parseOptionalAddressParam(params.Funder, "funder")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parseAmountParam(params.Value, "value")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	pool, err := s.engine.CreateCategoryPool(caps, funder, categoryID, beneficiary, value, params.Start)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.recordReservation(pool)
	writeResult(w, req.ID, poolToJSON(pool))
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caps, authErr := s.capabilities(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createBatchParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	funder, err := parseOptionalAddressParam(params.Funder, "funder")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	requests := make([]vesting.PoolRequest, 0, len(params.Items))
	for i, item := range params.Items {
		beneficiary, err := parseAddressParam(item.Beneficiary, fmt.Sprintf("items[%d].beneficiary", i))
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		value, err := parseAmountParam(item.Value, fmt.Sprintf("items[%d].value", i))
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		request := vesting.PoolRequest{
			Beneficiary: beneficiary,
			Value:       value,
			Start:       item.Start,
		}
		if strings.TrimSpace(item.Category) != "" {
			categoryID, err := vesting.ParseCategoryID(item.Category)
			if err != nil {
				writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
				return
			}
			request.Category = categoryID
		} else {
			request.Schedule = vesting.Schedule{
				CliffSeconds:  item.CliffSeconds,
				PeriodSeconds: item.PeriodSeconds,
				PeriodCount:   item.PeriodCount,
			}
			request.InitialUnlockBps = item.InitialUnlockBps
		}
		requests = append(requests, request)
	}
	pools, err := s.engine.CreateBatch(caps, funder, requests)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	metrics := observability.Metrics()
	metrics.Batches.Inc()
	out := make([]poolJSON, len(pools))
	for i, pool := range pools {
		metrics.PoolsCreated.WithLabelValues(categoryLabel(pool.Category)).Inc()
		out[i] = poolToJSON(pool)
	}
	s.refreshReservedGauge()
	writeResult(w, req.ID, out)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params beneficiaryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddressParam(params.Beneficiary, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.engine.Claim(beneficiary)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	metrics := observability.Metrics()
	metrics.Claims.Inc()
	metrics.ClaimedAmount.Add(observability.AmountToFloat(amount))
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params beneficiaryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddressParam(params.Beneficiary, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.engine.Claimable(beneficiary)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) handleGetPools(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params beneficiaryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddressParam(params.Beneficiary, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	pools, err := s.engine.PoolsOf(beneficiary)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	out := make([]poolJSON, len(pools))
	for i, pool := range pools {
		out[i] = poolToJSON(pool)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	cats, err := s.engine.Categories()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	out := make([]categoryJSON, len(cats))
	for i, cat := range cats {
		out[i] = categoryJSON{
			Name:                cat.ID.String(),
			AllocationRemaining: cat.AllocationRemaining.String(),
			SlotsRemaining:      cat.SlotsRemaining,
			PerUnit:             cat.PerUnitAmount.String(),
			DirectAmount:        cat.DirectAmount,
			CliffSeconds:        cat.Schedule.CliffSeconds,
			PeriodSeconds:       cat.Schedule.PeriodSeconds,
			PeriodCount:         cat.Schedule.PeriodCount,
			InitialUnlockBps:    cat.InitialUnlockBps,
		}
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleWithdrawUnused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caps, authErr := s.capabilities(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params withdrawUnusedParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseAddressParam(params.Recipient, "recipient")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	symbol := strings.TrimSpace(params.Token)
	if symbol == "" {
		symbol = s.engine.Token()
	}
	amount, err := s.engine.WithdrawUnused(caps, symbol, recipient)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func categoryLabel(id vesting.CategoryID) string {
	if name := id.String(); name != "" {
		return name
	}
	return "custom"
}

func (s *Server) recordReservation(pool *vesting.Pool) {
	observability.Metrics().PoolsCreated.WithLabelValues(categoryLabel(pool.Category)).Inc()
	s.refreshReservedGauge()
}

func (s *Server) refreshReservedGauge() {
	reserved, err := s.engine.TotalReserved()
	if err != nil {
		return
	}
	observability.Metrics().ReservedTotal.Set(observability.AmountToFloat(reserved))
}
