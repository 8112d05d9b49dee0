package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name, raw, uploader string
		artist, title       string
	}{
		{"artist dash title", "Adele - Hello (Official Music Video)", "AdeleVEVO", "Adele", "Hello"},
		{"topic channel keeps dashes", "Love - Live", "Someband - Topic", "Someband", "Love - Live"},
		{"title then channel artist", "Hello - Adele", "Adele", "Adele", "Hello"},
		{"no separator uses uploader", "Hello [Lyrics]", "Adele", "Adele", "Hello"},
		{"feat marker normalized", "Daft Punk feat. Pharrell Williams - Get Lucky", "", "Daft Punk ft. Pharrell Williams", "Get Lucky"},
		{"long left side is the title", "This Is A Very Long Song Title Here - Band", "", "Band", "This Is A Very Long Song Title Here"},
		{"no uploader no split", "Hello", "", "", "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artist, title := ParseTitle(tt.raw, tt.uploader)
			assert.Equal(t, tt.artist, artist)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestCleanChannel(t *testing.T) {
	assert.Equal(t, "Adele", CleanChannel("Adele - Topic"))
	assert.Equal(t, "Adele", CleanChannel("AdeleVEVO"))
	assert.Equal(t, "Adele", CleanChannel("Adele Official"))
	assert.True(t, IsTopicChannel("Adele - Topic"))
	assert.False(t, IsTopicChannel("Topic Records"))
}
