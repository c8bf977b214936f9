package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for recoledger.
type Config struct {
	InstanceID string          `toml:"instance_id"`
	BaseDir    string          `toml:"base_dir"`
	LogDir     string          `toml:"log_dir"`
	Database   DatabaseConfig  `toml:"database"`
	Files      FilesConfig     `toml:"files"`
	Filter     FilterConfig    `toml:"filter"`
	Scheduler  SchedulerConfig `toml:"scheduler"`
	Readers    ReadersConfig   `toml:"readers"`
	Profile    ProfileConfig   `toml:"profile"`
	Server     ServerConfig    `toml:"server"`
	Breaker    BreakerConfig   `toml:"breaker"`
	Backup     BackupConfig    `toml:"backup"`
}

// DatabaseConfig represents configuration for the ledger database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesConfig selects where user files are resolved.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type FilesConfig struct {
	Type        string   `toml:"type"`                    // "filesystem" or "memory"
	Root        string   `toml:"root,omitempty"`          // only used for type=filesystem
	IDCacheSize int      `toml:"id_cache_size,omitempty"` // only used for type=filesystem
	Ignore      []string `toml:"ignore,omitempty"`
	IgnoreFile  string   `toml:"ignore_file,omitempty"`
}

// FilterConfig tunes the edit event filter.
type FilterConfig struct {
	PartialSuffix         string   `toml:"partial_suffix"`
	NonInteractiveClients []string `toml:"non_interactive_clients"`
}

// SchedulerConfig controls the periodic recompute job.
type SchedulerConfig struct {
	Interval   Duration `toml:"interval"`
	RunOnStart bool     `toml:"run_on_start"`
	JobTimeout Duration `toml:"job_timeout"` // zero means no timeout
}

// ReadersConfig controls content extraction.
type ReadersConfig struct {
	MaxBytes      int64  `toml:"max_bytes"`
	PDFLicenseKey string `toml:"pdf_license_key,omitempty"`
}

// ProfileConfig tunes interest profile construction.
type ProfileConfig struct {
	MaxTerms       int     `toml:"max_terms"`
	EditWeight     float64 `toml:"edit_weight"`
	FavoriteWeight float64 `toml:"favorite_weight"`
}

// ServerConfig configures the HTTP hook ingress.
type ServerConfig struct {
	Listen          string   `toml:"listen"`
	UserHeader      string   `toml:"user_header"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// BreakerConfig configures the circuit breaker around ledger writes from hooks.
type BreakerConfig struct {
	FailureThreshold uint32   `toml:"failure_threshold"`
	OpenTimeout      Duration `toml:"open_timeout"`
}

// BackupConfig configures ledger database backups.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
// Store selects where snapshots are kept and Keep bounds how many are retained.
type BackupConfig struct {
	Type          string `toml:"type"`  // "plain" or "age"
	Store         string `toml:"store"` // "filesystem", "s3" or "memory"
	Dir           string `toml:"dir"`   // only used for store=filesystem
	Keep          int    `toml:"keep"`  // zero keeps every snapshot
	RecipientPath string `toml:"recipient_path,omitempty"` // only used for type=age
	IdentityPath  string `toml:"identity_path,omitempty"`  // passphrase-protected; only used for type=age

	// S3-specific fields (only used when Store == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("24h", "90s").
type Duration struct {
	time.Duration
}

// Dur wraps d.
func Dur(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config with the provided values and defaults for every section.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Files: FilesConfig{
			Type:        "filesystem",
			Root:        filepath.Join(baseDir, "files"),
			IDCacheSize: 4096,
		},
		Filter: FilterConfig{
			PartialSuffix:         ".part",
			NonInteractiveClients: []string{"desktop", "android", "ios"},
		},
		Scheduler: SchedulerConfig{
			Interval:   Dur(24 * time.Hour),
			JobTimeout: Dur(time.Hour),
		},
		Readers: ReadersConfig{
			MaxBytes: 10 << 20,
		},
		Profile: ProfileConfig{
			MaxTerms:       50,
			EditWeight:     1.0,
			FavoriteWeight: 2.0,
		},
		Server: ServerConfig{
			Listen:          "127.0.0.1:8089",
			UserHeader:      "X-Remote-User",
			ShutdownTimeout: Dur(10 * time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      Dur(30 * time.Second),
		},
		Backup: BackupConfig{
			Type:          "plain",
			Store:         "filesystem",
			Dir:           filepath.Join(baseDir, "backups"),
			Keep:          7,
			RecipientPath: filepath.Join(baseDir, "keys", "backup.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "backup.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
