package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	blobcore "preordercore/internal/blob/core"
	"preordercore/internal/infra/blob/memory"
)

func TestNamespaceQualifiesKeys(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	ns := NewNamespace(inner, "exports")

	info, err := ns.Put(ctx, "jobs/1/orders.csv", strings.NewReader("payload"), blobcore.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "jobs/1/orders.csv" {
		t.Fatalf("expected stripped key, got %q", info.Key)
	}

	raw, err := inner.Head(ctx, "exports/jobs/1/orders.csv")
	if err != nil {
		t.Fatalf("expected blob under namespaced key: %v", err)
	}
	if raw.ContentType != "text/csv" {
		t.Fatalf("unexpected content type %q", raw.ContentType)
	}

	got, rc, err := ns.Get(ctx, "jobs/1/orders.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" || got.Key != "jobs/1/orders.csv" {
		t.Fatalf("unexpected get result %q %q", data, got.Key)
	}

	infos, err := ns.List(ctx, "jobs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "jobs/1/orders.csv" {
		t.Fatalf("unexpected listing %+v", infos)
	}

	removed, err := ns.Delete(ctx, "jobs/1/orders.csv")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if _, err := inner.Head(ctx, "exports/jobs/1/orders.csv"); err == nil {
		t.Fatalf("expected underlying blob removed")
	}
}

func TestNamespaceDefaultsToShared(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	ns := NewNamespace(inner, "  ")

	if _, err := ns.Put(ctx, "a.txt", strings.NewReader("x"), blobcore.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := inner.Head(ctx, "shared/a.txt"); err != nil {
		t.Fatalf("expected shared/ prefix, got %v", err)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	a := NewNamespace(inner, "tenant-a")
	b := NewNamespace(inner, "tenant-b")

	if _, err := a.Put(ctx, "doc", strings.NewReader("a"), blobcore.PutOptions{}); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if _, err := b.Put(ctx, "doc", strings.NewReader("b"), blobcore.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}

	infos, err := a.List(ctx, "")
	if err != nil {
		t.Fatalf("list a: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "doc" {
		t.Fatalf("expected tenant-a to see only its blob, got %+v", infos)
	}
}

func TestNamespacePresignPassthrough(t *testing.T) {
	ns := NewNamespace(memory.New(), "exports")
	if _, err := ns.PresignURL(context.Background(), "doc", blobcore.SignedURLOptions{}); !errors.Is(err, blobcore.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from memory driver, got %v", err)
	}
}
