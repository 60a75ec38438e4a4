package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
)

func TestLogEmitterRendersAttributes(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	beneficiary := [20]byte{0x01}
	emitter.Emit(PoolCreated{
		PoolID:           [32]byte{0xAB},
		Beneficiary:      beneficiary,
		Amount:           big.NewInt(1200),
		Start:            100,
		PeriodSeconds:    60,
		PeriodCount:      12,
		InitialUnlockBps: 1000,
		Category:         "seed",
		CreatedAt:        100,
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["event"] != TypePoolCreated {
		t.Fatalf("event type attribute: %v", line["event"])
	}
	if line["amount"] != "1200" {
		t.Fatalf("amount attribute: %v", line["amount"])
	}
	if line["category"] != "seed" {
		t.Fatalf("category attribute: %v", line["category"])
	}
	want := crypto.NewAddress(crypto.DFVPrefix, beneficiary[:]).String()
	if line["beneficiary"] != want {
		t.Fatalf("beneficiary attribute: got %v want %s", line["beneficiary"], want)
	}
}

func TestLogEmitterIgnoresNil(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))
	emitter.Emit(nil)
	if buf.Len() != 0 {
		t.Fatalf("nil event must not log, got %q", buf.String())
	}
}

func TestEventRendering(t *testing.T) {
	beneficiary := [20]byte{0x02}
	encoded := crypto.NewAddress(crypto.DFVPrefix, beneficiary[:]).String()

	cases := []struct {
		name     string
		event    Renderer
		wantType string
		attrs    map[string]string
	}{
		{
			name:     "claimed",
			event:    Claimed{Beneficiary: beneficiary, Amount: big.NewInt(300), Pools: 2, Timestamp: 42},
			wantType: TypeClaimed,
			attrs: map[string]string{
				"beneficiary": encoded,
				"amount":      "300",
				"pools":       "2",
				"timestamp":   "42",
			},
		},
		{
			name:     "batch created",
			event:    BatchCreated{BatchID: "b-1", Count: 3, Amount: big.NewInt(600), Timestamp: 7},
			wantType: TypeBatchCreated,
			attrs: map[string]string{
				"batchId": "b-1",
				"count":   "3",
				"amount":  "600",
			},
		},
		{
			name:     "treasury withdrawn",
			event:    TreasuryWithdrawn{Token: "DFV", Recipient: beneficiary, Amount: big.NewInt(77), Timestamp: 7},
			wantType: TypeTreasuryWithdrawn,
			attrs: map[string]string{
				"token":     "DFV",
				"recipient": encoded,
				"amount":    "77",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rendered := tc.event.Event()
			if rendered.Type != tc.wantType {
				t.Fatalf("type: got %s want %s", rendered.Type, tc.wantType)
			}
			for key, want := range tc.attrs {
				if got := rendered.Attributes[key]; got != want {
					t.Fatalf("%s: got %q want %q", key, got, want)
				}
			}
		})
	}
}

func TestPoolCreatedOmitsEmptyCategory(t *testing.T) {
	rendered := PoolCreated{Amount: big.NewInt(1)}.Event()
	if _, ok := rendered.Attributes["category"]; ok {
		t.Fatal("custom pools must not carry a category attribute")
	}
}
