package tracker

import "context"

// ProfileSink receives the recompute pass's output. It stores extracted
// document content, records which files a user showed interest in, and
// rebuilds the user's profile once all of the user's signals are handled.
type ProfileSink interface {
	IndexDocument(ctx context.Context, fileID int64, text string) error
	RecordInterest(ctx context.Context, userID string, fileID int64, reason Reason) error
	Rebuild(ctx context.Context, userID string) error
}

// NopProfileSink discards everything.
type NopProfileSink struct{}

func (NopProfileSink) IndexDocument(context.Context, int64, string) error          { return nil }
func (NopProfileSink) RecordInterest(context.Context, string, int64, Reason) error { return nil }
func (NopProfileSink) Rebuild(context.Context, string) error                       { return nil }
