package models

import "strings"

type Platform string

const (
	PlatformUnknown    Platform = "unknown"
	PlatformSpotify    Platform = "spotify"
	PlatformAppleMusic Platform = "apple_music"
	PlatformYouTube    Platform = "youtube"
)

// IsSource reports whether p is the home platform every resolution is keyed on.
func (p Platform) IsSource() bool { return p == PlatformSpotify }

// IsPartner reports whether p is a platform we resolve links onto.
func (p Platform) IsPartner() bool {
	return p == PlatformAppleMusic || p == PlatformYouTube
}

type ContentType string

const (
	ContentUnknown ContentType = "unknown"
	ContentTrack   ContentType = "track"
	ContentAlbum   ContentType = "album"
	ContentArtist  ContentType = "artist"
)

// ParsedIdentifier is the classification of a raw link or URI.
// ID is non-empty exactly when Platform is not PlatformUnknown.
type ParsedIdentifier struct {
	Platform      Platform    `json:"platform"`
	ContentType   ContentType `json:"contentType"`
	ID            string      `json:"id,omitempty"`
	OriginalInput string      `json:"originalInput"`
}

func (p ParsedIdentifier) Known() bool {
	return p.Platform != PlatformUnknown && p.ID != ""
}

type TrackMetadata struct {
	ID          string   `json:"id"`
	ISRC        string   `json:"isrc,omitempty"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album,omitempty"`
	DurationMs  int      `json:"durationMs"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
}

type AlbumMetadata struct {
	ID          string   `json:"id"`
	UPC         string   `json:"upc,omitempty"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	TotalTracks int      `json:"totalTracks"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
}

func (t TrackMetadata) PrimaryArtist() string { return firstOf(t.Artists) }

func (a AlbumMetadata) PrimaryArtist() string { return firstOf(a.Artists) }

// JoinedArtists renders the artist credit the way catalogs usually print it.
func JoinedArtists(artists []string) string {
	return strings.Join(artists, ", ")
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
