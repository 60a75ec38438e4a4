package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundtrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x5A}, 20)
	addr := NewAddress(DFVPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(DFVPrefix)+"1") {
		t.Fatalf("encoded address missing prefix: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != DFVPrefix {
		t.Fatalf("prefix mismatch: %s", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("payload mismatch: %x", decoded.Bytes())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("garbage must not decode")
	}
	if _, err := DecodeAddress(""); err == nil {
		t.Fatal("empty string must not decode")
	}
}

func TestNewAddressLengthCheck(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("short payload must panic")
		}
	}()
	NewAddress(DFVPrefix, []byte{0x01})
}
