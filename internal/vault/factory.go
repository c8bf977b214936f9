package vault

import (
	"fmt"

	"recoledger/internal/config"
)

// NewVaultFromConfig creates a Vault based on the backup store type.
func NewVaultFromConfig(cfg config.BackupConfig) (Vault, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryVault(), nil
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem backup store requires dir to be set")
		}
		return NewFileSystemVault(cfg.Dir)
	case "s3":
		return newS3VaultFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown backup store: %s", cfg.Store)
	}
}
