package models

import "encoding/json"

// Resolution aggregates every partner platform's outcome for one source item.
type Resolution struct {
	ContentType ContentType    `json:"type"`
	Track       *TrackMetadata `json:"-"`
	Album       *AlbumMetadata `json:"-"`
	AppleMusic  Outcome        `json:"appleMusic"`
	YouTube     Outcome        `json:"youtube"`
	SongLink    string         `json:"songlink,omitempty"`
	FromCache   bool           `json:"cached"`
	// Partial is set by a reverse lookup that could not find the item on the
	// source platform; only the link that was given is populated.
	Partial bool `json:"partial,omitempty"`
}

// Unresolved reports whether nothing was identified: unrecognized input or
// content, such as artists, that has no cross-platform equivalent.
func (r *Resolution) Unresolved() bool {
	return r == nil || (r.Track == nil && r.Album == nil)
}

// Outcome returns the slot for a partner platform.
func (r *Resolution) Outcome(p Platform) Outcome {
	switch p {
	case PlatformAppleMusic:
		return r.AppleMusic
	case PlatformYouTube:
		return r.YouTube
	}
	return Outcome{}
}

func (r *Resolution) SetOutcome(p Platform, o Outcome) {
	switch p {
	case PlatformAppleMusic:
		r.AppleMusic = o
	case PlatformYouTube:
		r.YouTube = o
	}
}

type resolutionAlias Resolution

type resolutionJSON struct {
	resolutionAlias
	Source json.RawMessage `json:"source"`
}

func (r Resolution) MarshalJSON() ([]byte, error) {
	var (
		source []byte
		err    error
	)
	switch {
	case r.Track != nil:
		source, err = json.Marshal(r.Track)
	case r.Album != nil:
		source, err = json.Marshal(r.Album)
	default:
		source = []byte("null")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(resolutionJSON{resolutionAlias: resolutionAlias(r), Source: source})
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	var raw resolutionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Resolution(raw.resolutionAlias)
	if len(raw.Source) == 0 || string(raw.Source) == "null" {
		return nil
	}
	switch r.ContentType {
	case ContentTrack:
		var t TrackMetadata
		if err := json.Unmarshal(raw.Source, &t); err != nil {
			return err
		}
		r.Track = &t
	case ContentAlbum:
		var a AlbumMetadata
		if err := json.Unmarshal(raw.Source, &a); err != nil {
			return err
		}
		r.Album = &a
	}
	return nil
}
