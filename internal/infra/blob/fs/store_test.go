package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"preordercore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.Put(ctx, "exports/1/orders.csv", strings.NewReader("User,Produk"), core.PutOptions{
		ContentType: "text/csv; charset=utf-8",
		Metadata:    map[string]string{"job": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("User,Produk")) || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.URL != "http://local.blob/exports/1/orders.csv" {
		t.Fatalf("unexpected url %q", info.URL)
	}

	got, rc, err := s.Get(ctx, "exports/1/orders.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	rc.Close()
	if string(payload) != "User,Produk" {
		t.Fatalf("unexpected payload %q", payload)
	}
	if got.ContentType != "text/csv; charset=utf-8" || got.Metadata["job"] != "1" {
		t.Fatalf("unexpected metadata %+v", got)
	}

	if _, err := s.Put(ctx, "exports/1/orders.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{"", "  ", "../escape", "a/../../escape", "/absolute"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestDeleteRemovesSidecar(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Put(ctx, "a/b.txt", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	removed, err := s.Delete(ctx, "a/b.txt")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "a", "b.txt.meta")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected sidecar removed, got %v", err)
	}

	removed, err = s.Delete(ctx, "a/b.txt")
	if err != nil || removed {
		t.Fatalf("delete missing: removed=%v err=%v", removed, err)
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, key := range []string{"exports/1/orders.csv", "exports/1/report.json", "other/note.txt"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := s.List(ctx, "exports/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 blobs, got %+v", infos)
	}
	if infos[0].Key != "exports/1/orders.csv" || infos[1].Key != "exports/1/report.json" {
		t.Fatalf("expected sorted keys, got %+v", infos)
	}
}

func TestPresignGetOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.PresignURL(ctx, "a/b.txt", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if u != "http://local.blob/a/b.txt" {
		t.Fatalf("unexpected url %q", u)
	}

	if _, err := s.PresignURL(ctx, "a/b.txt", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}
