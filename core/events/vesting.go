package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
)

const (
	TypePoolCreated       = "vesting.pool.created"
	TypeClaimed           = "vesting.claimed"
	TypeBatchCreated      = "vesting.batch.created"
	TypeTreasuryWithdrawn = "vesting.treasury.withdrawn"
)

// PoolCreated carries the full snapshot of a freshly created vesting pool.
type PoolCreated struct {
	PoolID           [32]byte
	Beneficiary      [20]byte
	Amount           *big.Int
	Start            int64
	CliffSeconds     uint64
	PeriodSeconds    uint64
	PeriodCount      uint64
	InitialUnlockBps uint32
	Category         string
	CreatedAt        int64
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Event() *Event {
	attrs := map[string]string{
		"id":               hex.EncodeToString(e.PoolID[:]),
		"beneficiary":      crypto.NewAddress(crypto.DFVPrefix, e.Beneficiary[:]).String(),
		"amount":           formatAmount(e.Amount),
		"start":            intToString(e.Start),
		"cliffSeconds":     uintToString(e.CliffSeconds),
		"periodSeconds":    uintToString(e.PeriodSeconds),
		"periodCount":      uintToString(e.PeriodCount),
		"initialUnlockBps": strconv.FormatUint(uint64(e.InitialUnlockBps), 10),
		"createdAt":        intToString(e.CreatedAt),
	}
	if e.Category != "" {
		attrs["category"] = e.Category
	}
	return &Event{Type: TypePoolCreated, Attributes: attrs}
}

// Claimed records a settled claim across all of a beneficiary's pools.
type Claimed struct {
	Beneficiary [20]byte
	Amount      *big.Int
	Pools       int
	Timestamp   int64
}

func (Claimed) EventType() string { return TypeClaimed }

func (e Claimed) Event() *Event {
	return &Event{
		Type: TypeClaimed,
		Attributes: map[string]string{
			"beneficiary": crypto.NewAddress(crypto.DFVPrefix, e.Beneficiary[:]).String(),
			"amount":      formatAmount(e.Amount),
			"pools":       strconv.Itoa(e.Pools),
			"timestamp":   intToString(e.Timestamp),
		},
	}
}

// BatchCreated summarises an all-or-nothing batch of pool creations.
type BatchCreated struct {
	BatchID   string
	Count     int
	Amount    *big.Int
	Timestamp int64
}

func (BatchCreated) EventType() string { return TypeBatchCreated }

func (e BatchCreated) Event() *Event {
	return &Event{
		Type: TypeBatchCreated,
		Attributes: map[string]string{
			"batchId":   e.BatchID,
			"count":     strconv.Itoa(e.Count),
			"amount":    formatAmount(e.Amount),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// TreasuryWithdrawn records an administrative sweep of unreserved funds.
type TreasuryWithdrawn struct {
	Token     string
	Recipient [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (TreasuryWithdrawn) EventType() string { return TypeTreasuryWithdrawn }

func (e TreasuryWithdrawn) Event() *Event {
	return &Event{
		Type: TypeTreasuryWithdrawn,
		Attributes: map[string]string{
			"token":     e.Token,
			"recipient": crypto.NewAddress(crypto.DFVPrefix, e.Recipient[:]).String(),
			"amount":    formatAmount(e.Amount),
			"timestamp": intToString(e.Timestamp),
		},
	}
}
