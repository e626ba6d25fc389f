package drive

import (
	"net/url"
	"strings"
)

const publicURLPrefix = "https://drive.google.com/uc?export=view&id="

// PublicURL is the anonymous view link for a Drive object.
func PublicURL(id string) string {
	return publicURLPrefix + url.QueryEscape(id)
}

// ObjectIDFromURL extracts the object ID from a Drive link, either from the
// id query parameter or from a /d/<id> path segment.
func ObjectIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if id := u.Query().Get("id"); id != "" {
		return id, true
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segments {
		if s == "d" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}
