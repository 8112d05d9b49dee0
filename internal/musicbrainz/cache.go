package musicbrainz

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"crosslink/internal/kvstore"
	"crosslink/internal/logging"
)

const (
	statusFound  = "found"
	statusAbsent = "absent"
)

// entry distinguishes "looked up, nothing there" from "never looked up",
// which is a missing key.
type entry struct {
	Status string `json:"status"`
	Value  string `json:"value,omitempty"`
}

// CacheKey builds mb:<kind>:<artist>:<title> from folded names.
func CacheKey(kind, artist, title string) string {
	return "mb:" + kind + ":" + foldKey(artist) + ":" + foldKey(title)
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldKey(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

func (c *Client) cached(ctx context.Context, key string) (entry, bool) {
	var e entry
	found, err := kvstore.GetJSON(ctx, c.store, key, &e)
	if err != nil {
		c.logger.Warn("enrichment cache read failed", logging.Error(err))
		return entry{}, false
	}
	if !found || (e.Status != statusFound && e.Status != statusAbsent) {
		return entry{}, false
	}
	return e, true
}

func (c *Client) remember(ctx context.Context, key string, e entry) {
	if err := kvstore.PutJSON(ctx, c.store, key, e, c.ttl); err != nil {
		c.logger.Warn("enrichment cache write failed", logging.Error(err))
	}
}

var luceneReplacer = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// EscapeLucene backslash-escapes Lucene query syntax characters.
func EscapeLucene(s string) string {
	return luceneReplacer.Replace(s)
}
