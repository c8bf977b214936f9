//go:build unix

package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"recoledger/internal/tracker"
)

// newTestResolver creates a resolver over a temp root with one user, alice.
func newTestResolver(t *testing.T, cacheSize int) (*OSResolver, string) {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "alice", "Docs"), 0755); err != nil {
		t.Fatalf("creating user tree: %v", err)
	}
	r, err := NewOSResolver(root, cacheSize, NewIgnoreMatcher([]string{"*.tmp"}))
	if err != nil {
		t.Fatalf("NewOSResolver() error = %v", err)
	}
	return r, filepath.Join(root, "alice")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestOSResolver_ResolvePath(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a file", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		writeFile(t, filepath.Join(userRoot, "Docs", "report.pdf"), "hello")

		node, err := r.ResolvePath(ctx, "alice", "/Docs/report.pdf")
		if err != nil {
			t.Fatalf("ResolvePath() error = %v", err)
		}
		if node.IsDir {
			t.Error("IsDir = true, want false")
		}
		if node.Path != "/Docs/report.pdf" {
			t.Errorf("Path = %q, want %q", node.Path, "/Docs/report.pdf")
		}
		if node.UserID != "alice" {
			t.Errorf("UserID = %q, want alice", node.UserID)
		}
		if node.Size != 5 {
			t.Errorf("Size = %d, want 5", node.Size)
		}
		if node.ID == 0 {
			t.Error("ID should be non-zero")
		}
	})

	t.Run("normalizes relative paths", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		writeFile(t, filepath.Join(userRoot, "Docs", "a.txt"), "x")

		node, err := r.ResolvePath(ctx, "alice", "Docs//./a.txt")
		if err != nil {
			t.Fatalf("ResolvePath() error = %v", err)
		}
		if node.Path != "/Docs/a.txt" {
			t.Errorf("Path = %q, want /Docs/a.txt", node.Path)
		}
	})

	t.Run("resolves a directory", func(t *testing.T) {
		r, _ := newTestResolver(t, 0)

		node, err := r.ResolvePath(ctx, "alice", "/Docs")
		if err != nil {
			t.Fatalf("ResolvePath() error = %v", err)
		}
		if !node.IsDir {
			t.Error("IsDir = false, want true")
		}
	})

	t.Run("missing file is ErrNotFound", func(t *testing.T) {
		r, _ := newTestResolver(t, 0)

		_, err := r.ResolvePath(ctx, "alice", "/Docs/missing.txt")
		if !errors.Is(err, tracker.ErrNotFound) {
			t.Errorf("ResolvePath() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown user is ErrNotFound", func(t *testing.T) {
		r, _ := newTestResolver(t, 0)

		_, err := r.ResolvePath(ctx, "mallory", "/Docs")
		if !errors.Is(err, tracker.ErrNotFound) {
			t.Errorf("ResolvePath() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ignored file is ErrNotFound", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		writeFile(t, filepath.Join(userRoot, "scratch.tmp"), "x")

		_, err := r.ResolvePath(ctx, "alice", "/scratch.tmp")
		if !errors.Is(err, tracker.ErrNotFound) {
			t.Errorf("ResolvePath() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects traversal", func(t *testing.T) {
		r, _ := newTestResolver(t, 0)

		_, err := r.ResolvePath(ctx, "alice", "/Docs/../../bob/secret.txt")
		if err == nil {
			t.Fatal("ResolvePath() expected error for traversal")
		}
		if errors.Is(err, tracker.ErrNotFound) {
			t.Error("traversal should not be reported as not found")
		}
	})

	t.Run("rejects invalid user ids", func(t *testing.T) {
		r, _ := newTestResolver(t, 0)

		for _, user := range []string{"", "..", "a/b"} {
			if _, err := r.ResolvePath(ctx, user, "/Docs"); err == nil {
				t.Errorf("ResolvePath(user=%q) expected error", user)
			}
		}
	})

	t.Run("rejects symlinks", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		target := filepath.Join(userRoot, "Docs", "real.txt")
		writeFile(t, target, "x")
		if err := os.Symlink(target, filepath.Join(userRoot, "link.txt")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		if _, err := r.ResolvePath(ctx, "alice", "/link.txt"); err == nil {
			t.Error("ResolvePath() expected error for symlink")
		}
	})
}

func TestOSResolver_ResolveID(t *testing.T) {
	ctx := context.Background()

	t.Run("finds a file by walking", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		writeFile(t, filepath.Join(userRoot, "Docs", "deep", "notes.md"), "# hi")

		byPath, err := r.ResolvePath(ctx, "alice", "/Docs/deep/notes.md")
		if err != nil {
			t.Fatalf("ResolvePath() error = %v", err)
		}

		// A fresh resolver has an empty cache, so this must walk.
		fresh, err := NewOSResolver(filepath.Dir(userRoot), 0, nil)
		if err != nil {
			t.Fatalf("NewOSResolver() error = %v", err)
		}
		node, err := fresh.ResolveID(ctx, "alice", byPath.ID)
		if err != nil {
			t.Fatalf("ResolveID() error = %v", err)
		}
		if node.Path != "/Docs/deep/notes.md" {
			t.Errorf("Path = %q, want /Docs/deep/notes.md", node.Path)
		}
	})

	t.Run("follows a rename", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		oldPath := filepath.Join(userRoot, "Docs", "draft.txt")
		writeFile(t, oldPath, "x")

		node, _ := r.ResolvePath(ctx, "alice", "/Docs/draft.txt")
		if err := os.Rename(oldPath, filepath.Join(userRoot, "final.txt")); err != nil {
			t.Fatalf("rename: %v", err)
		}

		got, err := r.ResolveID(ctx, "alice", node.ID)
		if err != nil {
			t.Fatalf("ResolveID() error = %v", err)
		}
		if got.Path != "/final.txt" {
			t.Errorf("Path = %q, want /final.txt", got.Path)
		}
	})

	t.Run("deleted file is ErrNotFound", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		p := filepath.Join(userRoot, "Docs", "gone.txt")
		writeFile(t, p, "x")
		node, _ := r.ResolvePath(ctx, "alice", "/Docs/gone.txt")
		os.Remove(p)

		_, err := r.ResolveID(ctx, "alice", node.ID)
		if !errors.Is(err, tracker.ErrNotFound) {
			t.Errorf("ResolveID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("files of other users are not found", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		bobFile := filepath.Join(filepath.Dir(userRoot), "bob", "b.txt")
		writeFile(t, bobFile, "x")

		node, err := r.ResolvePath(ctx, "bob", "/b.txt")
		if err != nil {
			t.Fatalf("ResolvePath(bob) error = %v", err)
		}

		_, err = r.ResolveID(ctx, "alice", node.ID)
		if !errors.Is(err, tracker.ErrNotFound) {
			t.Errorf("ResolveID(alice) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		r, userRoot := newTestResolver(t, 0)
		writeFile(t, filepath.Join(userRoot, "Docs", "a.txt"), "x")

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := r.ResolveID(cctx, "alice", 1)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ResolveID() error = %v, want context.Canceled", err)
		}
	})
}

func TestOSResolver_Open(t *testing.T) {
	ctx := context.Background()
	r, userRoot := newTestResolver(t, 0)
	writeFile(t, filepath.Join(userRoot, "Docs", "a.txt"), "content")

	node, _ := r.ResolvePath(ctx, "alice", "/Docs/a.txt")
	rc, err := r.Open(ctx, node)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q, want %q", data, "content")
	}

	dir, _ := r.ResolvePath(ctx, "alice", "/Docs")
	if _, err := r.Open(ctx, dir); err == nil {
		t.Error("Open(directory) expected error")
	}
}
