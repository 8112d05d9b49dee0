package youtube

import (
	"regexp"
	"strings"
)

var (
	noiseRegex   = regexp.MustCompile(`(?i)\s*[\(\[](official\s+(music\s+|lyric\s+)?video|official\s+audio|official\s+visualizer|audio|video|lyrics?|visuali[sz]er|hd|hq|4k|remastered|remaster)[\)\]]`)
	featRegex    = regexp.MustCompile(`(?i)\bfeat\.?(\s|$)`)
	spaceRegex   = regexp.MustCompile(`\s{2,}`)
	splitRegex   = regexp.MustCompile(`\s+[-|–—:]\s+`)
	topicSuffix  = regexp.MustCompile(`(?i)\s+-\s+topic$`)
	vevoSuffix   = regexp.MustCompile(`(?i)\s*vevo$`)
	officialWord = regexp.MustCompile(`(?i)\s*official$`)
)

// CleanChannel strips the " - Topic", "VEVO" and "Official" decorations
// YouTube adds to artist channel names.
func CleanChannel(channel string) string {
	c := strings.TrimSpace(channel)
	c = topicSuffix.ReplaceAllString(c, "")
	c = vevoSuffix.ReplaceAllString(c, "")
	c = officialWord.ReplaceAllString(c, "")
	return strings.TrimSpace(c)
}

// IsTopicChannel reports whether channel is an auto-generated artist channel.
func IsTopicChannel(channel string) bool {
	return topicSuffix.MatchString(strings.TrimSpace(channel))
}

// cleanTitle removes upload decorations such as "(Official Video)".
func cleanTitle(raw string) string {
	t := noiseRegex.ReplaceAllString(raw, "")
	t = featRegex.ReplaceAllString(t, "ft.$1")
	t = spaceRegex.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// ParseTitle splits a video title into artist and track title, falling back
// to the uploader as the artist.
func ParseTitle(rawTitle, uploader string) (artist, title string) {
	t := cleanTitle(rawTitle)
	channel := CleanChannel(uploader)

	// Topic uploads are titled with the bare track name.
	if IsTopicChannel(uploader) {
		return channel, t
	}

	parts := splitRegex.Split(t, 2)
	if len(parts) == 2 {
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if looksLikeArtist(left, right, channel) {
			return left, right
		}
		return right, left
	}
	return channel, t
}

// looksLikeArtist decides whether left is the artist in "left - right":
// it names the channel, carries a featuring marker or list, or is short
// while right is not.
func looksLikeArtist(left, right, channel string) bool {
	leftLower := strings.ToLower(left)
	if channel != "" {
		ch := strings.ToLower(channel)
		if strings.Contains(leftLower, ch) {
			return true
		}
		if strings.Contains(strings.ToLower(right), ch) {
			return false
		}
	}
	if strings.Contains(left, ",") || strings.Contains(leftLower, "ft.") || strings.Contains(leftLower, " & ") {
		return true
	}
	leftWords := len(strings.Fields(left))
	rightWords := len(strings.Fields(right))
	return leftWords <= 4 || leftWords <= rightWords
}
