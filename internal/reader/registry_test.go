package reader

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gabriel-vasile/mimetype"

	"recoledger/internal/config"
	"recoledger/internal/tracker"
)

func newTestRegistry(maxBytes int64) *Registry {
	pdf, _ := NewPDF("")
	return NewRegistry(maxBytes, tracker.NewNopLogger(), NewMarkdown(), pdf, NewPlainText())
}

func node(path string, size int64) *tracker.Node {
	return &tracker.Node{ID: 1, UserID: "alice", Path: path, Size: size}
}

func TestRegistry_Read(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		path     string
		content  string
		want     string
		contains []string
		excludes []string
	}{
		{
			name:    "plain text passes through",
			path:    "/notes.txt",
			content: "quarterly budget review",
			want:    "quarterly budget review",
		},
		{
			name:     "markdown loses its markup",
			path:     "/Docs/plan.md",
			content:  "# Roadmap\n\nShip the *ledger* and `recompute` soon.\n",
			contains: []string{"Roadmap", "ledger", "recompute", "soon"},
			excludes: []string{"#", "*", "`"},
		},
		{
			name:     "markdown extension is case-insensitive",
			path:     "/README.MARKDOWN",
			content:  "## Heading\n\n- item one\n- item two\n",
			contains: []string{"Heading", "item one", "item two"},
			excludes: []string{"##", "- "},
		},
		{
			name:     "markdown frontmatter is skipped",
			path:     "/post.md",
			content:  "---\ntitle: secret\n---\nbody text\n",
			contains: []string{"body text"},
			excludes: []string{"secret"},
		},
		{
			name:    "markdown content in a text file is kept verbatim",
			path:    "/raw.txt",
			content: "# not a heading here",
			want:    "# not a heading here",
		},
		{
			name:    "binary content yields nothing",
			path:    "/photo.png",
			content: "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
			want:    "",
		},
	}

	r := newTestRegistry(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Read(ctx, node(tt.path, int64(len(tt.content))), strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if tt.contains == nil && got != tt.want {
				t.Errorf("Read() = %q, want %q", got, tt.want)
			}
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Read() = %q, missing %q", got, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Read() = %q, should not contain %q", got, s)
				}
			}
		})
	}
}

func TestRegistry_SizeCap(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(8)

	t.Run("declared size over the cap", func(t *testing.T) {
		got, err := r.Read(ctx, node("/big.txt", 9), strings.NewReader("small"))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got != "" {
			t.Errorf("Read() = %q, want empty", got)
		}
	})

	t.Run("content longer than declared size", func(t *testing.T) {
		got, err := r.Read(ctx, node("/grew.txt", 4), strings.NewReader("grown past the cap"))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got != "" {
			t.Errorf("Read() = %q, want empty", got)
		}
	})

	t.Run("content exactly at the cap", func(t *testing.T) {
		got, err := r.Read(ctx, node("/fit.txt", 8), strings.NewReader("abcdefgh"))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got != "abcdefgh" {
			t.Errorf("Read() = %q, want abcdefgh", got)
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestRegistry_Errors(t *testing.T) {
	r := newTestRegistry(0)

	t.Run("read failure", func(t *testing.T) {
		if _, err := r.Read(context.Background(), node("/a.txt", 1), failingReader{}); err == nil {
			t.Error("Read() expected error")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Read(ctx, node("/a.txt", 1), strings.NewReader("x"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Read() error = %v, want context.Canceled", err)
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		data := []byte("%PDF-1.4\nthis is not really a pdf")
		if _, err := r.Read(context.Background(), node("/broken.pdf", int64(len(data))), bytes.NewReader(data)); err == nil {
			t.Error("Read() expected error for corrupt pdf")
		}
	})
}

func TestFormatSelection(t *testing.T) {
	r := newTestRegistry(0)

	tests := []struct {
		path string
		data string
		want string
	}{
		{"/a.pdf", "%PDF-1.7\n", "pdf"},
		{"/a.bin", "%PDF-1.7\n", "pdf"},
		{"/a.md", "hello", "markdown"},
		{"/a.markdown", "hello", "markdown"},
		{"/a.txt", "hello", "text"},
		{"/a.csv", "a,b\n1,2\n", "text"},
		{"/a.json", `{"k": "v"}`, "text"},
		{"/a.png", "\x89PNG\r\n\x1a\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := r.formatFor(node(tt.path, int64(len(tt.data))), []byte(tt.data))
			got := ""
			if f != nil {
				got = f.Name()
			}
			if got != tt.want {
				t.Errorf("formatFor(%s) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsText(t *testing.T) {
	if !isText(mimetype.Detect([]byte("plain words"))) {
		t.Error("isText(plain) = false, want true")
	}
	if isText(mimetype.Detect([]byte("\x89PNG\r\n\x1a\n"))) {
		t.Error("isText(png) = true, want false")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r, err := NewRegistryFromConfig(config.ReadersConfig{MaxBytes: 1024}, tracker.NewNopLogger())
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if r.maxBytes != 1024 {
		t.Errorf("maxBytes = %d, want 1024", r.maxBytes)
	}
	if len(r.formats) != 3 {
		t.Errorf("len(formats) = %d, want 3", len(r.formats))
	}

	r, err = NewRegistryFromConfig(config.ReadersConfig{}, tracker.NewNopLogger())
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if r.maxBytes != DefaultMaxBytes {
		t.Errorf("maxBytes = %d, want %d", r.maxBytes, DefaultMaxBytes)
	}
}
