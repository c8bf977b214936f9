package tracker

import (
	"context"
	"fmt"
	"io"
)

// ContentReader extracts plain text from a file's content.
// Implementations choose a format-specific strategy from the node and the bytes.
type ContentReader interface {
	Read(ctx context.Context, node *Node, content io.Reader) (string, error)
}

// ExtractionError reports that a file's content could not be read or parsed.
// The recompute pass keeps the corresponding ledger record for the next cycle.
type ExtractionError struct {
	FileID int64
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting file %d: %v", e.FileID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
