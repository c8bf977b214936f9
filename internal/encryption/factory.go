// Package encryption protects ledger backups at rest.
package encryption

import (
	"fmt"
	"io"

	"recoledger/internal/config"
)

// Encryptor transforms a database snapshot before it is stored in the backup vault.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
	// Extension is the file suffix for snapshots it produces.
	Extension() string
}

// PlainEncryptor copies snapshots unchanged.
type PlainEncryptor struct{}

func (PlainEncryptor) Extension() string { return ".db" }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	return nil
}

// NewEncryptorFromConfig creates an Encryptor based on the backup type.
func NewEncryptorFromConfig(cfg config.BackupConfig) (Encryptor, error) {
	switch cfg.Type {
	case "plain", "":
		return PlainEncryptor{}, nil
	case "age":
		if cfg.RecipientPath == "" {
			return nil, fmt.Errorf("age backups require recipient_path")
		}
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backup type: %q", cfg.Type)
	}
}
