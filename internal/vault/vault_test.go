package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"recoledger/internal/config"
)

// newVaults returns one of each implementation, keyed by name.
func newVaults(t *testing.T) map[string]Vault {
	t.Helper()
	fsv, err := NewFileSystemVault(filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	s3v, _ := newTestS3Vault(t, "backups")
	return map[string]Vault{
		"filesystem": fsv,
		"memory":     NewMemoryVault(),
		"s3":         s3v,
	}
}

func TestVault_PutGet(t *testing.T) {
	for impl, v := range newVaults(t) {
		t.Run(impl, func(t *testing.T) {
			n, err := v.Put("inst-20240115T103000Z.db", strings.NewReader("SQLite format 3"))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if n != 15 {
				t.Errorf("Put() = %d bytes, want 15", n)
			}

			var buf bytes.Buffer
			if err := v.Get("inst-20240115T103000Z.db", &buf); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if buf.String() != "SQLite format 3" {
				t.Errorf("Get() = %q", buf.String())
			}

			if _, err := v.Put("inst-20240115T103000Z.db", strings.NewReader("again")); err == nil {
				t.Error("Put() over an existing snapshot should fail")
			}

			err = v.Get("missing.db", &buf)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestVault_InvalidNames(t *testing.T) {
	names := []string{"", ".", "..", "../escape.db", `a\b.db`, ".tmp-123"}
	for impl, v := range newVaults(t) {
		t.Run(impl, func(t *testing.T) {
			for _, name := range names {
				if _, err := v.Put(name, strings.NewReader("x")); err == nil {
					t.Errorf("Put(%q) should fail", name)
				}
			}
		})
	}
}

func TestVault_ListDelete(t *testing.T) {
	for impl, v := range newVaults(t) {
		t.Run(impl, func(t *testing.T) {
			for _, name := range []string{"a-3.db", "a-1.db", "b-1.db", "a-2.db.age"} {
				if _, err := v.Put(name, strings.NewReader(name)); err != nil {
					t.Fatalf("Put(%q) error = %v", name, err)
				}
			}

			snaps, err := v.List("a-")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var got []string
			for _, s := range snaps {
				got = append(got, s.Name)
				if s.Size != int64(len(s.Name)) {
					t.Errorf("%s size = %d, want %d", s.Name, s.Size, len(s.Name))
				}
			}
			if want := "a-1.db a-2.db.age a-3.db"; strings.Join(got, " ") != want {
				t.Errorf("List(a-) = %v, want %s", got, want)
			}

			if err := v.Delete("a-1.db"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := v.Delete("a-1.db"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
			if all, _ := v.List(""); len(all) != 3 {
				t.Errorf("List(\"\") = %d snapshots, want 3", len(all))
			}
		})
	}
}

func TestFileSystemVault_SkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault(root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".tmp-abandoned"), []byte("partial"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "subdir"), 0700); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Put("x-1.db", strings.NewReader("ok")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	snaps, err := v.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != "x-1.db" {
		t.Errorf("List() = %+v, want only x-1.db", snaps)
	}
	if got := v.Location("x-1.db"); got != filepath.Join(root, "x-1.db") {
		t.Errorf("Location() = %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestFileSystemVault_FailedPutLeavesNothing(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault(root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	if _, err := v.Put("x-1.db", failingReader{}); err == nil {
		t.Fatal("Put() with failing reader should fail")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("backup dir has %d entries after failed Put, want 0", len(entries))
	}
}

// barrierReader holds every writer in its first Read until all of them have
// started, so each Put is past the existence check before any publishes.
type barrierReader struct {
	body    string
	started *sync.WaitGroup
	once    sync.Once
	r       io.Reader
}

func (b *barrierReader) Read(p []byte) (int, error) {
	b.once.Do(func() {
		b.started.Done()
		b.started.Wait()
		b.r = strings.NewReader(b.body)
	})
	return b.r.Read(p)
}

func TestFileSystemVault_ConcurrentPutSameName(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault(root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	const writers = 8
	var started, done sync.WaitGroup
	started.Add(writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		i := i
		done.Add(1)
		go func() {
			defer done.Done()
			r := &barrierReader{body: fmt.Sprintf("writer-%d", i), started: &started}
			_, errs[i] = v.Put("x-1.db", r)
		}()
	}
	done.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner >= 0 {
				t.Fatalf("writers %d and %d both succeeded", winner, i)
			}
			winner = i
			continue
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("writer %d error = %v, want already exists", i, err)
		}
	}
	if winner < 0 {
		t.Fatal("no writer succeeded")
	}

	var buf bytes.Buffer
	if err := v.Get("x-1.db", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if want := fmt.Sprintf("writer-%d", winner); buf.String() != want {
		t.Errorf("snapshot content = %q, want the winner's %q", buf.String(), want)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("backup dir = %v, want only x-1.db", names)
	}
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name        string
		keep        int
		wantDeleted []string
		wantLeft    int
	}{
		{name: "keep zero keeps everything", keep: 0, wantLeft: 4},
		{name: "keep more than present", keep: 10, wantLeft: 4},
		{name: "keep two", keep: 2, wantDeleted: []string{"inst-20240101T000000Z.db", "inst-20240102T000000Z.db"}, wantLeft: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewMemoryVault()
			for _, name := range []string{
				"inst-20240103T000000Z.db",
				"inst-20240101T000000Z.db",
				"inst-20240104T000000Z.db",
				"inst-20240102T000000Z.db",
			} {
				if _, err := v.Put(name, strings.NewReader("x")); err != nil {
					t.Fatal(err)
				}
			}
			// Another instance's snapshots are never touched.
			if _, err := v.Put("other-20230101T000000Z.db", strings.NewReader("x")); err != nil {
				t.Fatal(err)
			}

			deleted, err := Prune(v, "inst-", tt.keep)
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if strings.Join(deleted, ",") != strings.Join(tt.wantDeleted, ",") {
				t.Errorf("Prune() deleted %v, want %v", deleted, tt.wantDeleted)
			}
			left, _ := v.List("inst-")
			if len(left) != tt.wantLeft {
				t.Errorf("%d snapshots left, want %d", len(left), tt.wantLeft)
			}
			if other, _ := v.List("other-"); len(other) != 1 {
				t.Error("Prune() touched another instance's snapshot")
			}
		})
	}
}

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BackupConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.BackupConfig{Store: "memory"}},
		{name: "filesystem", cfg: config.BackupConfig{Store: "filesystem", Dir: t.TempDir()}},
		{name: "default is filesystem", cfg: config.BackupConfig{Dir: t.TempDir()}},
		{name: "filesystem without dir", cfg: config.BackupConfig{Store: "filesystem"}, wantErr: true},
		{name: "s3", cfg: config.BackupConfig{
			Store: "s3", S3Bucket: "ledger-backups", S3Region: "us-east-1",
			S3Endpoint: "http://127.0.0.1:9000", S3AccessKeyID: "test", S3SecretAccessKey: "test",
		}},
		{name: "s3 without bucket", cfg: config.BackupConfig{Store: "s3", S3Region: "us-east-1"}, wantErr: true},
		{name: "unknown", cfg: config.BackupConfig{Store: "gcs", Dir: "/tmp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVaultFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v == nil {
				t.Error("NewVaultFromConfig() returned nil vault")
			}
		})
	}
}
