// Package app wires configuration, storage, the hook dispatcher and the
// recompute job together for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"recoledger/internal/api"
	"recoledger/internal/config"
	"recoledger/internal/database"
	"recoledger/internal/encryption"
	"recoledger/internal/fs"
	"recoledger/internal/metrics"
	"recoledger/internal/profile"
	"recoledger/internal/reader"
	"recoledger/internal/scheduler"
	"recoledger/internal/tracker"
	"recoledger/internal/vault"
)

// App is the application layer between the CLI and the tracker.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the DB lifecycle on Close.
type App struct {
	cfg        *config.Config
	db         *database.SQLiteDatabase
	resolver   tracker.NodeResolver
	dispatcher *tracker.Dispatcher
	recomputer *tracker.Recomputer
	profiles   *profile.Builder
	metrics    *metrics.Collector
	logger     *slog.Logger
	log        tracker.Logger
	clock      tracker.Clock
	ids        tracker.IDGenerator
	vault      vault.Vault
	op         *Operation
	logFile    *os.File
}

// NewApp creates a fully wired App from the given config.
// operation names the CLI command being run (e.g. "Recompute", "Serve").
// The database must already be at the latest schema version; see Migrate.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	clock := tracker.RealClock{}
	op := NewOperation(operation, clock.Now())

	policy, err := filterPolicy(cfg.Filter)
	if err != nil {
		return nil, err
	}

	resolver, err := fs.NewResolverFromConfig(cfg.Files)
	if err != nil {
		return nil, fmt.Errorf("creating node resolver: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run 'recoledger db migrate'): %w", err)
	}

	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	readers, err := reader.NewRegistryFromConfig(cfg.Readers, log)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating content readers: %w", err)
	}

	collector := metrics.NewCollector()
	profiles := profile.NewBuilder(db, profile.Settings{
		MaxTerms:       cfg.Profile.MaxTerms,
		EditWeight:     cfg.Profile.EditWeight,
		FavoriteWeight: cfg.Profile.FavoriteWeight,
	}, log, clock)

	dispatcher := tracker.NewDispatcher(policy, resolver, db, log, clock, collector, tracker.BreakerSettings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout.Duration,
	})
	recomputer := tracker.NewRecomputer(db, resolver, readers, profiles, log, clock, collector)

	return &App{
		cfg:        cfg,
		db:         db,
		resolver:   resolver,
		dispatcher: dispatcher,
		recomputer: recomputer,
		profiles:   profiles,
		metrics:    collector,
		logger:     logger,
		log:        log,
		clock:      clock,
		ids:        tracker.UUIDGenerator{},
		op:         op,
		logFile:    logFile,
	}, nil
}

// filterPolicy builds the edit filter from config. Unknown client names are rejected
// so a typo cannot silently let a sync client through.
func filterPolicy(cfg config.FilterConfig) (tracker.FilterPolicy, error) {
	policy := tracker.FilterPolicy{PartialSuffix: cfg.PartialSuffix}
	if cfg.NonInteractiveClients == nil {
		policy.NonInteractive = tracker.DefaultFilterPolicy().NonInteractive
		return policy, nil
	}
	for _, name := range cfg.NonInteractiveClients {
		c, err := tracker.ParseClientType(name)
		if err != nil {
			return tracker.FilterPolicy{}, fmt.Errorf("filter.non_interactive_clients: %w", err)
		}
		policy.NonInteractive = append(policy.NonInteractive, c)
	}
	return policy, nil
}

// Migrate opens the configured database and applies all pending migrations.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// OnEdit reports a content write at path, as the CLI or an embedding caller sees it.
func (a *App) OnEdit(ctx context.Context, ev tracker.FileEvent) bool {
	return a.dispatcher.OnEdit(ctx, ev)
}

// OnFavorite reports a favorite toggle on fileID.
func (a *App) OnFavorite(ctx context.Context, userID string, fileID int64, caller tracker.FavoriteCaller) bool {
	return a.dispatcher.OnFavorite(ctx, userID, fileID, caller)
}

// Pending returns the ledger's pending records, optionally for one user.
func (a *App) Pending(ctx context.Context, userID string) ([]tracker.ChangedFile, error) {
	if userID != "" {
		return a.db.ListChangedForUser(ctx, userID)
	}
	return a.db.ListChanged(ctx)
}

// History returns the most recent recompute runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]tracker.RunRecord, error) {
	return a.db.ListRuns(ctx, limit)
}

// Profile returns the user's top interest terms.
func (a *App) Profile(ctx context.Context, userID string, limit int) ([]profile.Term, error) {
	return a.profiles.Profile(ctx, userID, limit)
}

// Recompute runs one recompute pass and records it in the run history.
// It satisfies scheduler.Job.
func (a *App) Recompute(ctx context.Context, trigger string) (*tracker.RunReport, error) {
	runID := a.ids.New()
	id, err := a.db.StartRun(ctx, runID, trigger, a.clock.Now())
	if err != nil {
		a.op.Fail(err)
		return nil, err
	}
	a.log.Info("recompute run started", "run_id", runID, "trigger", trigger)

	report, runErr := a.recomputer.Run(ctx)

	var consumed, failed int64
	if report != nil {
		consumed, failed = int64(report.Consumed), int64(report.Failed)
	}
	status := tracker.RunStatus(report, runErr)
	// The run row is closed even when ctx was cancelled mid-pass.
	if err := a.db.FinishRun(context.WithoutCancel(ctx), id, status, a.clock.Now(), consumed, failed); err != nil {
		a.log.Error("recording run result failed", "run_id", runID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	a.op.Fail(runErr)
	a.log.Info("recompute run finished", "run_id", runID, "status", status, "consumed", consumed, "failed", failed)
	return report, runErr
}

// Backup writes a snapshot of the ledger database into the backup vault,
// encrypted when the backup type asks for it, then prunes old snapshots.
// It returns where the snapshot was stored.
func (a *App) Backup(ctx context.Context) (string, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Backup)
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}
	v, err := a.backupVault()
	if err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp("", "recoledger-snapshot-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := a.db.BackupTo(tmpPath); err != nil {
		a.op.Fail(err)
		return "", err
	}

	name := fmt.Sprintf("%s%s%s", a.backupPrefix(), a.clock.Now().Format("20060102T150405Z"), enc.Extension())
	size, err := putEncrypted(v, name, enc, tmpPath)
	if err != nil {
		a.op.Fail(err)
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	a.log.Info("ledger backed up", "snapshot", name, "bytes", size)

	pruned, err := vault.Prune(v, a.backupPrefix(), a.cfg.Backup.Keep)
	for _, p := range pruned {
		a.log.Info("old snapshot pruned", "snapshot", p)
	}
	if err != nil {
		a.log.Warn("pruning snapshots failed", "error", err)
	}
	return v.Location(name), nil
}

// Backups lists this instance's stored snapshots, oldest first.
func (a *App) Backups() ([]vault.Snapshot, error) {
	v, err := a.backupVault()
	if err != nil {
		return nil, err
	}
	return v.List(a.backupPrefix())
}

func (a *App) backupPrefix() string {
	return a.cfg.InstanceID + "-"
}

// backupVault opens the backup vault on first use, so commands that never
// back up do not create the backup directory.
func (a *App) backupVault() (vault.Vault, error) {
	if a.vault != nil {
		return a.vault, nil
	}
	v, err := vault.NewVaultFromConfig(a.cfg.Backup)
	if err != nil {
		return nil, fmt.Errorf("opening backup vault: %w", err)
	}
	a.vault = v
	return v, nil
}

// putEncrypted streams the snapshot at src through enc into the vault.
func putEncrypted(v vault.Vault, name string, enc encryption.Encryptor, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(enc.Encrypt(in, pw))
	}()
	n, err := v.Put(name, pr)
	// Unblocks the encrypting goroutine if Put gave up early.
	pr.CloseWithError(io.ErrClosedPipe)
	return n, err
}

// SetupBackupKeys generates the age key pair used for encrypted backups.
func SetupBackupKeys(cfg *config.Config, passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	return encryption.NewAgeEncryptor(cfg.Backup).Setup(passphrase)
}

// DecryptBackup decrypts an age-encrypted backup at src into a plain database file at dest.
func DecryptBackup(cfg *config.Config, passphrase, src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	return encryption.NewAgeEncryptor(cfg.Backup).Decrypt(passphrase, in, out)
}

// Serve runs the HTTP hook ingress and the periodic recompute job under one
// supervisor tree until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.metrics.WatchBreaker("ledger-writes", a.dispatcher.BreakerState)
	a.metrics.WatchPending(a.db.CountChanged)

	job := scheduler.NewRecomputeService(a, scheduler.RecomputeConfig{
		Interval:   a.cfg.Scheduler.Interval.Duration,
		RunOnStart: a.cfg.Scheduler.RunOnStart,
		JobTimeout: a.cfg.Scheduler.JobTimeout.Duration,
	}, a.log, a.clock)

	server := &http.Server{
		Addr: a.cfg.Server.Listen,
		Handler: api.NewRouter(api.Deps{
			Hooks:      a.dispatcher,
			Ledger:     a.db,
			Trigger:    job,
			Metrics:    a.metrics.Handler(),
			Logger:     a.log,
			UserHeader: a.cfg.Server.UserHeader,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := scheduler.NewTree(a.logger, scheduler.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration,
	})
	tree.AddJob(job)
	tree.AddAPI(scheduler.NewHTTPService(server, a.cfg.Server.ShutdownTimeout.Duration))

	a.log.Info("serving", "listen", a.cfg.Server.Listen)
	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.op.Fail(err)
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	return nil
}

// Close records how the operation ended and closes all resources.
func (a *App) Close() error {
	var firstErr error

	a.log.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"duration", a.clock.Now().Sub(a.op.StartedAt).Truncate(time.Millisecond).String())

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
