package fs

import (
	"fmt"

	"recoledger/internal/config"
	"recoledger/internal/tracker"
)

// NewResolverFromConfig creates a NodeResolver based on the files config type.
func NewResolverFromConfig(cfg config.FilesConfig) (tracker.NodeResolver, error) {
	switch cfg.Type {
	case "filesystem":
		patterns := cfg.Ignore
		if cfg.IgnoreFile != "" {
			fromFile, err := ParseIgnoreFile(cfg.IgnoreFile)
			if err != nil {
				return nil, err
			}
			patterns = append(append([]string{}, patterns...), fromFile...)
		}
		return NewOSResolver(cfg.Root, cfg.IDCacheSize, NewIgnoreMatcher(patterns))
	case "memory":
		return NewMemoryResolver(), nil
	default:
		return nil, fmt.Errorf("unknown files type: %s", cfg.Type)
	}
}
