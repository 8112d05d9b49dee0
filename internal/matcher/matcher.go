package matcher

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"crosslink/internal/models"
)

const (
	// AcceptThreshold is the lowest fuzzy confidence returned as a real match.
	AcceptThreshold = 0.8

	// IdentifierConfidence is assigned to ISRC/UPC equality hits, which skip scoring.
	IdentifierConfidence = 0.98
)

// Remaster, edition, "feat." and similar annotations.
var annotationRegex = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

// Normalize prepares a title or artist name for comparison.
func Normalize(s string) string {
	s = html.UnescapeString(s)
	s = strings.ToLower(s)
	s = annotationRegex.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Similarity returns 1 - levenshtein/maxLen over the normalized strings.
func Similarity(a, b string) float64 {
	if a == b && a != "" {
		return 1
	}
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return strutil.Similarity(na, nb, metrics.NewLevenshtein())
}

// PartialSimilarity is a cheaper, prefix-forgiving score used where only
// loosely structured titles are available.
func PartialSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	return strutil.Similarity(na, nb, metrics.NewJaroWinkler())
}

// Contains reports whether the normalized needle occurs in the normalized haystack.
func Contains(haystack, needle string) bool {
	n := Normalize(needle)
	return n != "" && strings.Contains(Normalize(haystack), n)
}

func artistSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	primary := Similarity(a[0], b[0])
	if joined := Similarity(models.JoinedArtists(a), models.JoinedArtists(b)); joined > primary {
		return joined
	}
	return primary
}

// TrackConfidence weighs how likely candidate is the same recording as source.
func TrackConfidence(source, candidate models.TrackMetadata) float64 {
	score := artistSimilarity(source.Artists, candidate.Artists) * 0.35
	score += min(1, Similarity(source.Name, candidate.Name)*1.5) * 0.35
	score += durationScore(source.DurationMs, candidate.DurationMs) * 0.20
	score += Similarity(source.Album, candidate.Album) * 0.10
	return clamp(score)
}

// AlbumConfidence weighs how likely candidate is the same release as source.
func AlbumConfidence(source, candidate models.AlbumMetadata) float64 {
	score := artistSimilarity(source.Artists, candidate.Artists) * 0.40
	score += Similarity(source.Name, candidate.Name) * 0.40
	score += trackCountScore(source.TotalTracks, candidate.TotalTracks) * 0.10
	if source.ReleaseYear > 0 && source.ReleaseYear == candidate.ReleaseYear {
		score += 0.10
	}
	return clamp(score)
}

// Accepted reports whether a fuzzy confidence clears AcceptThreshold. The
// weighted sums are not exact in floating point, so a hair below counts.
func Accepted(confidence float64) bool {
	return confidence+1e-9 >= AcceptThreshold
}

// BestTrack returns the index and confidence of the highest scoring
// candidate, or -1 when there are none. Ties keep the earlier candidate.
func BestTrack(source models.TrackMetadata, candidates []models.TrackMetadata) (int, float64) {
	best, bestScore := -1, 0.0
	for i, cand := range candidates {
		if score := TrackConfidence(source, cand); best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

// BestAlbum is BestTrack for albums.
func BestAlbum(source models.AlbumMetadata, candidates []models.AlbumMetadata) (int, float64) {
	best, bestScore := -1, 0.0
	for i, cand := range candidates {
		if score := AlbumConfidence(source, cand); best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

// TrackFields describes a fuzzy track match as reported to clients.
func TrackFields(candidate models.TrackMetadata) map[string]string {
	fields := map[string]string{"title": candidate.Name}
	if a := models.JoinedArtists(candidate.Artists); a != "" {
		fields["artist"] = a
	}
	if candidate.Album != "" {
		fields["album"] = candidate.Album
	}
	return fields
}

func AlbumFields(candidate models.AlbumMetadata) map[string]string {
	fields := map[string]string{"album": candidate.Name}
	if a := models.JoinedArtists(candidate.Artists); a != "" {
		fields["artist"] = a
	}
	return fields
}

func durationScore(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	switch diff := abs(a - b); {
	case diff <= 5000:
		return 1
	case diff <= 30000:
		return 0.5
	}
	return 0
}

func trackCountScore(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	switch diff := abs(a - b); {
	case diff <= 2:
		return 1
	case diff <= 5:
		return 0.5
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
