package blob

import (
	"context"
	"io"
	"strings"

	"preordercore/internal/blob/core"
)

// Namespace wraps a Store so every key lives under a fixed prefix. It keeps
// unrelated writers from colliding inside a shared bucket.
type Namespace struct {
	inner  core.Store
	prefix string
}

// NewNamespace wraps inner under prefix. An empty prefix defaults to "shared".
func NewNamespace(inner core.Store, prefix string) *Namespace {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "shared"
	}
	return &Namespace{inner: inner, prefix: prefix + "/"}
}

func (n *Namespace) qualify(key string) string {
	return n.prefix + strings.TrimPrefix(key, "/")
}

func (n *Namespace) strip(info core.Info) core.Info {
	info.Key = strings.TrimPrefix(info.Key, n.prefix)
	return info
}

// Driver returns the wrapped store's driver identifier.
func (n *Namespace) Driver() core.Driver { return n.inner.Driver() }

// Put stores a blob under the namespaced key.
func (n *Namespace) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	info, err := n.inner.Put(ctx, n.qualify(key), r, opts)
	if err != nil {
		return core.Info{}, err
	}
	return n.strip(info), nil
}

// Get returns blob metadata and content for the namespaced key.
func (n *Namespace) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, rc, err := n.inner.Get(ctx, n.qualify(key))
	if err != nil {
		return core.Info{}, nil, err
	}
	return n.strip(info), rc, nil
}

// Head returns blob metadata for the namespaced key.
func (n *Namespace) Head(ctx context.Context, key string) (core.Info, error) {
	info, err := n.inner.Head(ctx, n.qualify(key))
	if err != nil {
		return core.Info{}, err
	}
	return n.strip(info), nil
}

// Delete removes the namespaced blob, reporting whether it existed.
func (n *Namespace) Delete(ctx context.Context, key string) (bool, error) {
	return n.inner.Delete(ctx, n.qualify(key))
}

// List returns all blobs in the namespace matching prefix, with the namespace
// stripped from the returned keys.
func (n *Namespace) List(ctx context.Context, prefix string) ([]core.Info, error) {
	infos, err := n.inner.List(ctx, n.qualify(prefix))
	if err != nil {
		return nil, err
	}
	out := make([]core.Info, 0, len(infos))
	for _, info := range infos {
		out = append(out, n.strip(info))
	}
	return out, nil
}

// PresignURL returns a pre-signed URL for the namespaced key.
func (n *Namespace) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	return n.inner.PresignURL(ctx, n.qualify(key), opts)
}
