package spotify

import (
	"regexp"
	"strings"
)

const (
	baseURL      = "https://open.spotify.com"
	baseTrackURL = baseURL + "/track"
	baseEmbedURL = baseURL + "/embed/track"

	// ExampleURL is the shape reported back when a link is rejected.
	ExampleURL = baseTrackURL + "/{songID}"
	SampleURL  = baseTrackURL + "/4cOdK2wGLETKBW3PvgPWqT"
)

var trackURLPattern = regexp.MustCompile(`^https://open\.spotify\.com/track/[^/?#\s]+(\?\S*)?$`)

// IsValidLink reports whether s is a Spotify track URL.
func IsValidLink(s string) bool {
	return trackURLPattern.MatchString(strings.TrimSpace(s))
}

// CanonicalID returns the bare track id of a track URL, dropping the host,
// the path prefix and anything from '?' onward. It returns "" for input
// that is not a track URL.
func CanonicalID(s string) string {
	s = strings.TrimSpace(s)
	if !IsValidLink(s) {
		return ""
	}
	id := strings.TrimPrefix(s, baseTrackURL+"/")
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	return id
}

func TrackURL(id string) string {
	return baseTrackURL + "/" + id
}

func EmbedURL(id string) string {
	return baseEmbedURL + "/" + id
}
