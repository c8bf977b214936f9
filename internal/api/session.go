package api

import (
	"net/http"
	"regexp"
	"strings"

	"recoledger/internal/tracker"
)

// DefaultUserHeader carries the authenticated user, set by the fronting proxy.
const DefaultUserHeader = "X-Remote-User"

var (
	desktopAgent = regexp.MustCompile(`^Mozilla/5\.0 \([A-Za-z0-9 ._-]+\) (mirall|csyncoC)/`)
	androidAgent = regexp.MustCompile(`^Mozilla/5\.0 \(Android\) (ownCloud|Nextcloud)-android`)
	iosAgent     = regexp.MustCompile(`^Mozilla/5\.0 \(iOS\) (ownCloud|Nextcloud)-iOS`)
)

// Session is the identity attached to an incoming request.
type Session struct {
	UserID string
	Client tracker.ClientType
}

// ClassifyClient maps a User-Agent to the kind of client that sent it.
// Sync clients are recognized by their agent strings; anything else with a
// browser-like agent counts as web.
func ClassifyClient(userAgent string) tracker.ClientType {
	switch {
	case desktopAgent.MatchString(userAgent):
		return tracker.ClientDesktop
	case androidAgent.MatchString(userAgent):
		return tracker.ClientAndroid
	case iosAgent.MatchString(userAgent):
		return tracker.ClientIOS
	case userAgent == "":
		return tracker.ClientUnknown
	default:
		return tracker.ClientWeb
	}
}

// SessionFromRequest reads the user from header and classifies the client.
// A missing header yields an empty UserID, which the edit filter rejects.
func SessionFromRequest(r *http.Request, header string) Session {
	if header == "" {
		header = DefaultUserHeader
	}
	return Session{
		UserID: strings.TrimSpace(r.Header.Get(header)),
		Client: ClassifyClient(r.UserAgent()),
	}
}
