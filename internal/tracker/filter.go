package tracker

import "strings"

// Rejection names the rule that rejected an event.
type Rejection string

const (
	RejectPartialUpload  Rejection = "partial-upload"
	RejectNoSession      Rejection = "no-session"
	RejectNonInteractive Rejection = "non-interactive-client"
	RejectNoPath         Rejection = "no-path"
)

// DefaultPartialSuffix is the suffix carried by in-flight chunked uploads.
const DefaultPartialSuffix = ".part"

// Decision is the outcome of evaluating a FileEvent.
// A rejected decision is a normal outcome, not an error.
type Decision struct {
	Accepted bool
	Reason   Rejection
}

func accept() Decision { return Decision{Accepted: true} }

func reject(r Rejection) Decision { return Decision{Reason: r} }

// Rejected reports whether the event was filtered out.
func (d Decision) Rejected() bool { return !d.Accepted }

func (d Decision) String() string {
	if d.Accepted {
		return "accepted"
	}
	return "rejected: " + string(d.Reason)
}

// FilterPolicy decides which edit events may produce a change signal.
type FilterPolicy struct {
	PartialSuffix  string
	NonInteractive []ClientType
}

// DefaultFilterPolicy rejects partial uploads and the native desktop and mobile sync clients.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		PartialSuffix:  DefaultPartialSuffix,
		NonInteractive: []ClientType{ClientDesktop, ClientAndroid, ClientIOS},
	}
}

// Evaluate applies the rules in order; the first matching rule wins.
// Later rules assume the earlier ones passed.
func (p FilterPolicy) Evaluate(ev FileEvent) Decision {
	suffix := p.PartialSuffix
	if suffix == "" {
		suffix = DefaultPartialSuffix
	}
	if strings.HasSuffix(ev.Path, suffix) {
		return reject(RejectPartialUpload)
	}
	if !ev.HasSession() {
		return reject(RejectNoSession)
	}
	if p.isNonInteractive(ev.Client) {
		return reject(RejectNonInteractive)
	}
	if isRootOrEmpty(ev.Path) {
		return reject(RejectNoPath)
	}
	return accept()
}

func (p FilterPolicy) isNonInteractive(c ClientType) bool {
	for _, ni := range p.NonInteractive {
		if c == ni {
			return true
		}
	}
	return false
}

func isRootOrEmpty(path string) bool {
	trimmed := strings.TrimSpace(path)
	return trimmed == "" || strings.Trim(trimmed, "/") == ""
}
