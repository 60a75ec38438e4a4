package storage

import (
	"path/filepath"
	"testing"
)

func runDatabaseContract(t *testing.T, db Database) {
	t.Helper()

	got, err := db.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("get missing key: %v", err)
	}
	if got != nil {
		t.Fatalf("missing key should yield nil, got %q", got)
	}
	ok, err := db.Has([]byte("missing"))
	if err != nil || ok {
		t.Fatalf("has missing key: ok=%v err=%v", ok, err)
	}

	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("get after overwrite: got %q want v2", got)
	}
	ok, err = db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has existing key: ok=%v err=%v", ok, err)
	}
}

func TestMemDB(t *testing.T) {
	runDatabaseContract(t, NewMemDB())
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	runDatabaseContract(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "state.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	defer db.Close()
	runDatabaseContract(t, db)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("cassandra", ""); err == nil {
		t.Fatal("unknown backend must error")
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("mutable")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "mutable" {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
}
