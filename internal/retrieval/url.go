package retrieval

import (
	"fmt"
	"regexp"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// watchPatterns cover the URL shapes we accept: watch pages, short
// links, embeds and the legacy /v/ form.
var watchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/embed/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/v/[\w-]+`),
}

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/)([^&\n?#]+)`)

// ParseIdentity validates the URL shape and derives the video identity.
// It never touches the network.
func ParseIdentity(rawURL string) (domain.VideoIdentity, error) {
	valid := false
	for _, p := range watchPatterns {
		if p.MatchString(rawURL) {
			valid = true
			break
		}
	}
	if !valid {
		return domain.VideoIdentity{}, fmt.Errorf("%w: %s", domain.ErrInvalidURL, rawURL)
	}

	m := videoIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 || m[1] == "" {
		return domain.VideoIdentity{}, fmt.Errorf("%w: could not extract video id", domain.ErrInvalidURL)
	}

	return domain.VideoIdentity{VideoID: m[1], SourceURL: rawURL}, nil
}
