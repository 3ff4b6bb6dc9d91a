package storage

import (
	"errors"
	"testing"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("expected v1, got %s", got)
	}

	if err := db.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = db.Get([]byte("k"))
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %s", got)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value aliased caller buffer: %s", got)
	}
}

func TestWriteBatchAppliesAllEntries(t *testing.T) {
	backends := map[string]func(t *testing.T) Database{
		"memdb": func(t *testing.T) Database { return NewMemDB() },
		"leveldb": func(t *testing.T) Database {
			db, err := NewLevelDB(t.TempDir())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			return db
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			defer db.Close()

			entries := []BatchEntry{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("b"), Value: []byte("2")},
				{Key: []byte("c"), Value: []byte("3")},
			}
			if err := db.WriteBatch(entries); err != nil {
				t.Fatalf("write batch: %v", err)
			}
			for _, entry := range entries {
				got, err := db.Get(entry.Key)
				if err != nil {
					t.Fatalf("get %s: %v", entry.Key, err)
				}
				if string(got) != string(entry.Value) {
					t.Fatalf("key %s: expected %s, got %s", entry.Key, entry.Value, got)
				}
			}
		})
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected v, got %s", got)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}
