package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	youtuBeRe   = regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`)
	embedRe     = regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`)
	channelIDRe = regexp.MustCompile(`youtube\.com/channel/(UC[a-zA-Z0-9_-]{22})`)
	handleRe    = regexp.MustCompile(`@([a-zA-Z0-9_.-]+)`)
)

// ExtractVideoID pulls the 11-character video id out of watch,
// youtu.be and embed URL forms.
func ExtractVideoID(rawURL string) (string, error) {
	if m := youtuBeRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	if m := embedRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}

	parsed, err := url.Parse(rawURL)
	if err == nil && parsed.Host != "" && strings.Contains(parsed.Host, "youtube.com") {
		if v := parsed.Query().Get("v"); len(v) == 11 {
			return v, nil
		}
	}
	return "", fmt.Errorf("youtube: could not extract video id from %q", rawURL)
}

// ExtractChannelID returns the channel id from a /channel/ URL, or
// empty when the URL does not carry one.
func ExtractChannelID(rawURL string) string {
	if m := channelIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// ExtractHandle returns the @handle from a channel URL without the
// leading @, or empty when there is none.
func ExtractHandle(rawURL string) string {
	if m := handleRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}
