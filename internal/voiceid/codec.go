package voiceid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/MrWong99/voiceid/internal/textnorm"
)

// ErrCorruptProfiles is wrapped by the error [Store.Deserialize] returns when
// the blob cannot be parsed or fails validation.
var ErrCorruptProfiles = errors.New("voiceid: corrupt profile blob")

// profileRecord is the serialised form of a [Profile]. The layout matches the
// "voiceProfiles" slot written by the browser version of the app, so blobs
// exported from a browser can be loaded directly.
type profileRecord struct {
	Transcript string         `json:"transcript"`
	Confidence float64        `json:"confidence"`
	Timestamp  int64          `json:"timestamp"`
	Features   featuresRecord `json:"features"`
}

type featuresRecord struct {
	Length            int     `json:"length"`
	WordCount         int     `json:"wordCount"`
	Confidence        float64 `json:"confidence"`
	AverageWordLength float64 `json:"averageWordLength"`
	Timestamp         int64   `json:"timestamp"`
}

func toRecord(p Profile) profileRecord {
	ms := p.EnrolledAt.UnixMilli()
	return profileRecord{
		Transcript: p.Transcript,
		Confidence: p.Confidence,
		Timestamp:  ms,
		Features: featuresRecord{
			Length:            p.Features.Length,
			WordCount:         p.Features.WordCount,
			Confidence:        p.Features.Confidence,
			AverageWordLength: p.Features.AverageWordLength,
			Timestamp:         ms,
		},
	}
}

func fromRecord(id string, rec profileRecord) (Profile, error) {
	if id == "" {
		return Profile{}, errors.New("empty speaker id")
	}
	if math.IsNaN(rec.Confidence) || rec.Confidence < 0 || rec.Confidence > 1 {
		return Profile{}, fmt.Errorf("speaker %q: confidence %v out of range [0, 1]", id, rec.Confidence)
	}
	if rec.Timestamp <= 0 {
		return Profile{}, fmt.Errorf("speaker %q: missing enrolment timestamp", id)
	}
	text := textnorm.Normalize(rec.Transcript)
	return Profile{
		SpeakerID:  id,
		Transcript: text,
		Confidence: rec.Confidence,
		EnrolledAt: time.UnixMilli(rec.Timestamp),
		Features:   ExtractFeatures(text, rec.Confidence),
	}, nil
}

// Serialize encodes the profile set as a JSON object keyed by speaker ID.
// Keys appear in enumeration order so that a round trip preserves it.
func (s *Store) Serialize() ([]byte, error) {
	profiles := s.List()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range profiles {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.SpeakerID)
		if err != nil {
			return nil, fmt.Errorf("voiceid: serialize %q: %w", p.SpeakerID, err)
		}
		val, err := json.Marshal(toRecord(p))
		if err != nil {
			return nil, fmt.Errorf("voiceid: serialize %q: %w", p.SpeakerID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Deserialize replaces the whole profile set with the one encoded in data.
//
// A blob that cannot be parsed or holds an invalid profile leaves the store
// empty and returns an error wrapping [ErrCorruptProfiles]; the app stays
// usable and the speakers simply train again. Null entries, which the browser
// version wrote for untrained speakers, are skipped.
func (s *Store) Deserialize(data []byte) error {
	profiles, err := decodeProfiles(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.replace(nil)
		return fmt.Errorf("%w: %v", ErrCorruptProfiles, err)
	}
	s.replace(profiles)
	return nil
}

// decodeProfiles walks the JSON object token by token so that key order is
// preserved.
func decodeProfiles(data []byte) ([]Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, expectEOF(dec)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []Profile
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		id, _ := tok.(string)

		var rec *profileRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("speaker %q: %w", id, err)
		}
		if rec == nil {
			continue
		}
		p, err := fromRecord(id, *rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, expectEOF(dec)
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after profile object")
	}
	return nil
}
