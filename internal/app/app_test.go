package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recoledger/internal/config"
	"recoledger/internal/fs"
	"recoledger/internal/testutil"
	"recoledger/internal/tracker"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("test-instance", t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Files = config.FilesConfig{Type: "memory"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *fs.MemoryResolver) {
	t.Helper()
	a, err := NewApp(cfg, "Test")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	a.ids = testutil.NewStubIDGenerator()

	mem, ok := a.resolver.(*fs.MemoryResolver)
	if !ok {
		t.Fatalf("resolver is %T, want *fs.MemoryResolver", a.resolver)
	}
	return a, mem
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   string
	}{
		{
			name:   "unknown files type",
			mutate: func(cfg *config.Config) { cfg.Files.Type = "s3" },
			want:   "node resolver",
		},
		{
			name:   "unknown database type",
			mutate: func(cfg *config.Config) { cfg.Database.Type = "postgres" },
			want:   "creating database",
		},
		{
			name:   "unknown client in filter",
			mutate: func(cfg *config.Config) { cfg.Filter.NonInteractiveClients = []string{"desktop", "toaster"} },
			want:   "toaster",
		},
		{
			name: "unmigrated sqlite database",
			mutate: func(cfg *config.Config) {
				cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}
			},
			want: "db migrate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)

			a, err := NewApp(cfg, "Test")
			if err == nil {
				a.Close()
				t.Fatal("NewApp() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewApp() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}

	if err := Migrate(cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Running it again on an up-to-date database is a no-op.
	if err := Migrate(cfg); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	a, err := NewApp(cfg, "Test")
	if err != nil {
		t.Fatalf("NewApp() after Migrate error = %v", err)
	}
	a.Close()
}

func TestFilterPolicy(t *testing.T) {
	t.Run("nil list uses the default clients", func(t *testing.T) {
		p, err := filterPolicy(config.FilterConfig{})
		if err != nil {
			t.Fatalf("filterPolicy() error = %v", err)
		}
		if len(p.NonInteractive) != 3 {
			t.Errorf("NonInteractive = %v, want the three sync clients", p.NonInteractive)
		}
	})

	t.Run("empty list treats every client as interactive", func(t *testing.T) {
		p, err := filterPolicy(config.FilterConfig{NonInteractiveClients: []string{}})
		if err != nil {
			t.Fatalf("filterPolicy() error = %v", err)
		}
		d := p.Evaluate(tracker.FileEvent{Path: "/a.txt", UserID: "alice", Client: tracker.ClientDesktop})
		if !d.Accepted {
			t.Errorf("desktop edit = %v, want accepted", d)
		}
	})
}

func TestApp_HookToProfile(t *testing.T) {
	ctx := context.Background()
	a, mem := newTestApp(t, newTestConfig(t))

	id := mem.AddFile("alice", "/Garden/notes.md", []byte("# Tomatoes\n\nTomatoes need compost. Compost feeds tomatoes.\n"))
	mem.AddFile("alice", "/Garden/upload.bin.part", []byte("partial"))

	if !a.OnEdit(ctx, tracker.FileEvent{Path: "/Garden/notes.md", UserID: "alice", Client: tracker.ClientWeb}) {
		t.Fatal("OnEdit() = false, want true")
	}
	if a.OnEdit(ctx, tracker.FileEvent{Path: "/Garden/upload.bin.part", UserID: "alice", Client: tracker.ClientWeb}) {
		t.Error("OnEdit() on a partial upload = true, want false")
	}
	if !a.OnFavorite(ctx, "alice", id, tracker.AddFavorite) {
		t.Fatal("OnFavorite() = false, want true")
	}

	pending, err := a.Pending(ctx, "alice")
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Pending() = %d records, want 2", len(pending))
	}

	report, err := a.Recompute(ctx, tracker.TriggerManual)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if report.Consumed != 2 || report.Remaining != 0 {
		t.Errorf("report = %+v, want 2 consumed and none remaining", report)
	}

	if pending, _ := a.Pending(ctx, ""); len(pending) != 0 {
		t.Errorf("Pending() after recompute = %d records, want 0", len(pending))
	}

	runs, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("History() = %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.RunID != "run-1" || run.Trigger != tracker.TriggerManual || run.Status != tracker.RunSuccess {
		t.Errorf("run = %+v, want run-1 manual success", run)
	}
	if run.Consumed != 2 || run.FinishedAt == nil {
		t.Errorf("run = %+v, want 2 consumed and a finish time", run)
	}

	terms, err := a.Profile(ctx, "alice", 5)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(terms) == 0 || terms[0].Term != "tomatoes" {
		t.Errorf("Profile() = %v, want tomatoes first", terms)
	}
}

func TestApp_RecomputeCancelled(t *testing.T) {
	a, mem := newTestApp(t, newTestConfig(t))
	mem.AddFile("alice", "/a.txt", []byte("alpha"))
	a.OnEdit(context.Background(), tracker.FileEvent{Path: "/a.txt", UserID: "alice", Client: tracker.ClientWeb})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Recompute(ctx, tracker.TriggerSchedule); err == nil {
		t.Fatal("Recompute() with cancelled ctx = nil error, want error")
	}
	if !a.op.Failed() {
		t.Error("operation should be marked failed")
	}

	pending, err := a.Pending(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Pending() = %d records, want the edit to survive", len(pending))
	}
}

func TestApp_BackupPlain(t *testing.T) {
	cfg := newTestConfig(t)
	a, _ := newTestApp(t, cfg)

	path, err := a.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if filepath.Dir(path) != cfg.Backup.Dir {
		t.Errorf("backup dir = %q, want %q", filepath.Dir(path), cfg.Backup.Dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "test-instance-") || !strings.HasSuffix(path, ".db") {
		t.Errorf("backup name = %q, want test-instance-<ts>.db", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Error("plain backup is not a SQLite database")
	}
}

func TestApp_BackupRetention(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Backup.Store = "memory"
	cfg.Backup.Keep = 2
	a, _ := newTestApp(t, cfg)
	clock := testutil.FixedClock()
	a.clock = clock

	var locations []string
	for i := 0; i < 3; i++ {
		loc, err := a.Backup(context.Background())
		if err != nil {
			t.Fatalf("Backup() #%d error = %v", i+1, err)
		}
		locations = append(locations, loc)
		clock.Advance(time.Hour)
	}

	snaps, err := a.Backups()
	if err != nil {
		t.Fatalf("Backups() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Backups() = %d snapshots, want 2", len(snaps))
	}
	if "memory:"+snaps[0].Name != locations[1] || "memory:"+snaps[1].Name != locations[2] {
		t.Errorf("kept %v, want the two newest of %v", snaps, locations)
	}
	if snaps[0].Name != "test-instance-20240115T113000Z.db" {
		t.Errorf("oldest kept snapshot = %q", snaps[0].Name)
	}
}

func TestApp_BackupSameSecondFails(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Backup.Store = "memory"
	a, _ := newTestApp(t, cfg)
	a.clock = testutil.FixedClock()

	if _, err := a.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := a.Backup(context.Background()); err == nil {
		t.Error("second Backup() in the same second should not overwrite the first")
	}
}

func TestApp_BackupAgeRoundTrip(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Backup.Type = "age"

	if err := SetupBackupKeys(cfg, "hunter2"); err != nil {
		t.Fatalf("SetupBackupKeys() error = %v", err)
	}
	if err := SetupBackupKeys(cfg, "hunter2"); err == nil {
		t.Error("second SetupBackupKeys() should refuse to overwrite keys")
	}

	a, _ := newTestApp(t, cfg)
	path, err := a.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !strings.HasSuffix(path, ".db.age") {
		t.Errorf("backup name = %q, want .db.age suffix", path)
	}

	out := filepath.Join(t.TempDir(), "restored.db")
	if err := DecryptBackup(cfg, "wrong", path, out); err == nil {
		t.Error("DecryptBackup() with wrong passphrase should fail")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("failed DecryptBackup() should not leave an output file")
	}

	if err := DecryptBackup(cfg, "hunter2", path, out); err != nil {
		t.Fatalf("DecryptBackup() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading decrypted backup: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Error("decrypted backup is not a SQLite database")
	}
}

func TestSetupBackupKeys_EmptyPassphrase(t *testing.T) {
	if err := SetupBackupKeys(newTestConfig(t), ""); err == nil {
		t.Error("SetupBackupKeys() with empty passphrase should fail")
	}
}

func TestApp_Serve(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = config.Dur(2 * time.Second)
	cfg.Scheduler.RunOnStart = true
	a, mem := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		runs, err := a.History(context.Background(), 1)
		if err == nil && len(runs) == 1 && runs[0].FinishedAt != nil {
			if runs[0].Trigger != tracker.TriggerSchedule {
				t.Errorf("startup run trigger = %q, want %q", runs[0].Trigger, tracker.TriggerSchedule)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup recompute run was not recorded")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The pending gauge follows hooks without waiting for the next pass.
	mem.AddFile("alice", "/notes.txt", []byte("tomatoes"))
	if !a.OnEdit(context.Background(), tracker.FileEvent{Path: "/notes.txt", UserID: "alice", Client: tracker.ClientWeb}) {
		t.Fatal("OnEdit() = false, want true")
	}
	rec := httptest.NewRecorder()
	a.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "recoledger_ledger_pending_records 1") {
		t.Errorf("metrics do not show the pending edit:\n%s", rec.Body.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
