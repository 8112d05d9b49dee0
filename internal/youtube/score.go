package youtube

import (
	"strings"

	"crosslink/internal/matcher"
)

// Upload is a search hit as YouTube presents it.
type Upload struct {
	Title   string
	Channel string
}

const (
	titleWeight    = 0.5
	artistWeight   = 0.3
	channelBonus   = 0.15
	officialBonus  = 0.05
	markerPenalty  = 0.3
	rawTitleFactor = 0.9
)

// Words that mark a different rendition when the source title lacks them.
var renditionMarkers = []string{"cover", "karaoke", "remix", "reaction", "live", "instrumental", "sped up", "slowed", "8d audio", "nightcore"}

var officialTitleMarkers = []string{"official audio", "official video", "official music video", "official lyric video", "official visualizer"}

// ScoreUpload rates how likely u is the recording title by artist, on the
// same 0 to 1 scale as the catalog matchers.
func ScoreUpload(title, artist string, u Upload) float64 {
	gotArtist, gotTitle := ParseTitle(u.Title, u.Channel)

	titleScore := matcher.Similarity(title, gotTitle)
	if raw := matcher.PartialSimilarity(title, cleanTitle(u.Title)) * rawTitleFactor; raw > titleScore {
		titleScore = raw
	}
	score := titleScore * titleWeight

	switch {
	case artist == "":
	case matcher.Contains(u.Title, artist), matcher.Contains(u.Channel, artist):
		score += artistWeight
	default:
		best := max(matcher.Similarity(artist, gotArtist), matcher.Similarity(artist, CleanChannel(u.Channel)))
		score += best * artistWeight
	}

	channel := strings.ToLower(u.Channel)
	switch {
	case IsTopicChannel(u.Channel), strings.Contains(channel, "vevo"):
		score += channelBonus
	case strings.Contains(channel, "official"), artist != "" && matcher.Normalize(CleanChannel(u.Channel)) == matcher.Normalize(artist):
		score += channelBonus * 2 / 3
	}

	rawLower := strings.ToLower(u.Title)
	for _, m := range officialTitleMarkers {
		if strings.Contains(rawLower, m) {
			score += officialBonus
			break
		}
	}

	sourceLower := strings.ToLower(title)
	for _, m := range renditionMarkers {
		if containsWord(rawLower, m) && !containsWord(sourceLower, m) {
			score -= markerPenalty
		}
	}

	return min(1, max(0, score))
}

func containsWord(haystack, word string) bool {
	for i := 0; ; {
		j := strings.Index(haystack[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(haystack[start-1])) && (end == len(haystack) || !isWordByte(haystack[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z'
}
