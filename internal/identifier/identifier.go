// Package identifier classifies music links and URIs into platform, content
// type and catalog id.
package identifier

import (
	"regexp"
	"strings"

	"crosslink/internal/models"
)

type pattern struct {
	platform    models.Platform
	contentType models.ContentType
	re          *regexp.Regexp
}

// Order matters: the Apple nested-track pattern must win over the album
// pattern it is a refinement of.
var patterns = []pattern{
	{models.PlatformSpotify, "", regexp.MustCompile(`^spotify:(track|album|artist):([A-Za-z0-9]+)$`)},
	{models.PlatformSpotify, "", regexp.MustCompile(`^(?:https?://)?(?:open|play)\.spotify\.com/(?:intl-[a-z]{2}(?:-[A-Za-z]{2})?/)?(?:embed/)?(track|album|artist)/([A-Za-z0-9]+)(?:[/?#].*)?$`)},
	{models.PlatformAppleMusic, models.ContentTrack, regexp.MustCompile(`^(?:https?://)?(?:music|itunes)\.apple\.com/(?:[a-z]{2}/)?album/(?:[^/?#]+/)?\d+/?\?(?:[^#]*&)?i=(\d+)`)},
	{models.PlatformAppleMusic, models.ContentTrack, regexp.MustCompile(`^(?:https?://)?(?:music|itunes)\.apple\.com/(?:[a-z]{2}/)?song/(?:[^/?#]+/)?(\d+)(?:[/?#].*)?$`)},
	{models.PlatformAppleMusic, models.ContentAlbum, regexp.MustCompile(`^(?:https?://)?(?:music|itunes)\.apple\.com/(?:[a-z]{2}/)?album/(?:[^/?#]+/)?(\d+)(?:[/?#].*)?$`)},
	{models.PlatformAppleMusic, models.ContentArtist, regexp.MustCompile(`^(?:https?://)?(?:music|itunes)\.apple\.com/(?:[a-z]{2}/)?artist/(?:[^/?#]+/)?(\d+)(?:[/?#].*)?$`)},
	{models.PlatformYouTube, models.ContentTrack, regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.|music\.)?youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]{11})`)},
	{models.PlatformYouTube, models.ContentTrack, regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/shorts/([A-Za-z0-9_-]{11})`)},
	{models.PlatformYouTube, models.ContentTrack, regexp.MustCompile(`^(?:https?://)?youtu\.be/([A-Za-z0-9_-]{11})`)},
}

// Parse never fails: input that matches no known pattern comes back with
// PlatformUnknown and no id.
func Parse(input string) models.ParsedIdentifier {
	trimmed := strings.TrimSpace(input)
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		ct, id := p.contentType, m[len(m)-1]
		if ct == "" {
			ct = models.ContentType(m[1])
		}
		return models.ParsedIdentifier{
			Platform:      p.platform,
			ContentType:   ct,
			ID:            id,
			OriginalInput: input,
		}
	}
	return models.ParsedIdentifier{
		Platform:      models.PlatformUnknown,
		ContentType:   models.ContentUnknown,
		OriginalInput: input,
	}
}

// SpotifyURL renders the canonical web link for a Spotify id.
func SpotifyURL(ct models.ContentType, id string) string {
	return "https://open.spotify.com/" + string(ct) + "/" + id
}

// SongLinkURL is the aggregator page for a Spotify item.
func SongLinkURL(ct models.ContentType, id string) string {
	if id == "" {
		return ""
	}
	if ct == models.ContentAlbum {
		return "https://album.link/s/" + id
	}
	return "https://song.link/s/" + id
}
