package tracker

import "fmt"

// ClientType describes what kind of client issued the request behind an event.
type ClientType string

const (
	ClientWeb     ClientType = "web"
	ClientDesktop ClientType = "desktop"
	ClientAndroid ClientType = "android"
	ClientIOS     ClientType = "ios"
	ClientUnknown ClientType = "unknown"
)

// ParseClientType maps a client name from config or the command line to a
// ClientType. Unknown names are an error so a typo cannot pass as a real client.
func ParseClientType(s string) (ClientType, error) {
	switch c := ClientType(s); c {
	case ClientWeb, ClientDesktop, ClientAndroid, ClientIOS, ClientUnknown:
		return c, nil
	}
	return "", fmt.Errorf("unknown client type %q", s)
}

// FavoriteCaller identifies which favorite operation raised a favorite event.
type FavoriteCaller string

const (
	AddFavorite    FavoriteCaller = "addFavorite"
	RemoveFavorite FavoriteCaller = "removeFavorite"
)

// FileEvent is a raw file notification as delivered by the surrounding system.
// It is never persisted.
type FileEvent struct {
	// Path is relative to the acting user's root, e.g. "/Docs/report.pdf".
	Path string
	// UserID is the authenticated session user. Empty means no session.
	UserID string
	// Client is the client descriptor of the request that caused the event.
	Client ClientType
}

// HasSession reports whether an authenticated user is attached to the event.
func (e FileEvent) HasSession() bool {
	return e.UserID != ""
}
