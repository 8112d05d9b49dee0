package models

import (
	"encoding/json"
	"errors"
	"maps"
)

type outcomeKind uint8

const (
	outcomeAbsent outcomeKind = iota
	outcomeMatched
	outcomeFallback
)

// Outcome is one provider's answer for one source item: absent (the zero
// value), a scored match, or a generic search-page fallback.
type Outcome struct {
	kind       outcomeKind
	url        string
	confidence float64
	fields     map[string]string
	// degraded marks a fallback caused by an upstream failure rather than
	// by a search that found nothing good enough. It is not serialized.
	degraded bool
}

// Matched builds a scored match. Confidence is capped at 1; a non-positive
// confidence cannot be a match and yields a fallback for the same URL.
func Matched(url string, confidence float64, matchedFields map[string]string) Outcome {
	if confidence <= 0 {
		return Fallback(url)
	}
	if confidence > 1 {
		confidence = 1
	}
	return Outcome{
		kind:       outcomeMatched,
		url:        url,
		confidence: confidence,
		fields:     maps.Clone(matchedFields),
	}
}

func Fallback(url string) Outcome {
	return Outcome{kind: outcomeFallback, url: url}
}

// Degraded is a fallback returned because the provider could not be
// searched. It is good for this response only and must not be cached.
func Degraded(url string) Outcome {
	return Outcome{kind: outcomeFallback, url: url, degraded: true}
}

func (o Outcome) IsAbsent() bool   { return o.kind == outcomeAbsent }
func (o Outcome) IsMatched() bool  { return o.kind == outcomeMatched }
func (o Outcome) IsFallback() bool { return o.kind == outcomeFallback }
func (o Outcome) IsDegraded() bool { return o.degraded }

func (o Outcome) URL() string { return o.url }

// Confidence is 0 for fallbacks and absent outcomes.
func (o Outcome) Confidence() float64 { return o.confidence }

func (o Outcome) MatchedFields() map[string]string { return maps.Clone(o.fields) }

type outcomeJSON struct {
	URL           string            `json:"url"`
	Confidence    float64           `json:"confidence"`
	IsFallback    bool              `json:"isFallback"`
	MatchedFields map[string]string `json:"matchedFields,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.IsAbsent() {
		return []byte("null"), nil
	}
	return json.Marshal(outcomeJSON{
		URL:           o.url,
		Confidence:    o.confidence,
		IsFallback:    o.IsFallback(),
		MatchedFields: o.fields,
	})
}

var errInvalidOutcome = errors.New("outcome: fallback must not carry a confidence")

func (o *Outcome) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Outcome{}
		return nil
	}
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.IsFallback {
		if raw.Confidence != 0 || len(raw.MatchedFields) > 0 {
			return errInvalidOutcome
		}
		*o = Fallback(raw.URL)
		return nil
	}
	*o = Matched(raw.URL, raw.Confidence, raw.MatchedFields)
	return nil
}
