package block

import (
	"context"
	"errors"

	"github.com/antzucaro/matchr"

	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/strdist"
)

// Compile-time check.
var _ Strategy = (*Phonetic)(nil)

// PhoneticOptions configures the phonetic strategy.
type PhoneticOptions struct {
	// Field is the record field to encode.
	Field string

	// DoubleMetaphone additionally groups records by their Double
	// Metaphone codes, catching variants Soundex misses.
	DoubleMetaphone bool

	Limits Limits
}

// Phonetic groups records by the 4-character Soundex code of a field, so
// similar-sounding values ("Smith"/"Smyth") land in the same block.
type Phonetic struct {
	opts PhoneticOptions
}

// NewPhonetic creates a phonetic strategy over the given field.
func NewPhonetic(field string, optFns ...func(o *PhoneticOptions)) (*Phonetic, error) {
	opts := PhoneticOptions{Field: field}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Field == "" {
		return nil, errors.New("phonetic: field is required")
	}
	return &Phonetic{opts: opts}, nil
}

func (s *Phonetic) Name() string { return "phonetic" }

// Generate groups records by phonetic code. Records whose field is missing
// or encodes to "0000" (no letters) never form a group.
func (s *Phonetic) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	groups := make(map[string][]model.RecordID)
	for _, rec := range records {
		raw, ok := rec.StringField(s.opts.Field)
		if !ok {
			continue
		}
		code := strdist.Soundex(raw)
		if code == "0000" {
			continue
		}
		groups[code] = append(groups[code], rec.ID)

		if s.opts.DoubleMetaphone {
			primary, secondary := matchr.DoubleMetaphone(canonicalize(raw))
			if primary != "" {
				groups["dm:"+primary] = append(groups["dm:"+primary], rec.ID)
			}
			if secondary != "" && secondary != primary {
				groups["dm:"+secondary] = append(groups["dm:"+secondary], rec.ID)
			}
		}
	}
	return emitGroups(s.Name(), groups, s.opts.Limits, sink)
}
