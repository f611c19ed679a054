package core

import (
	"path/filepath"
	"testing"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("PREORDERCORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store instance")
	}
}

func TestOpenPersistentStoreSQLitePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factory.db")
	t.Setenv("PREORDERCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("PREORDERCORE_SQLITE_PATH", path)
	store, err := OpenPersistentStore(nil)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store instance")
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("PREORDERCORE_STORAGE_DRIVER", "cassandra")
	if _, err := OpenPersistentStore(nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
