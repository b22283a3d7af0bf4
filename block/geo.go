package block

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Strategy = (*Geo)(nil)

// GeoOptions configures the geographic strategy.
type GeoOptions struct {
	// StateField and CityField are matched exactly (canonicalized).
	// Either may be empty; at least one exact field or the postal field
	// must be set.
	StateField string
	CityField  string

	// PostalField holds a numeric postal code matched by range.
	PostalField string

	// PostalRange is the maximum numeric postal-code difference for two
	// records to be candidates. Default 10.
	PostalRange int

	Limits Limits
}

// Geo blocks on structured location fields: exact state/city groups and
// numeric postal-code range joins.
type Geo struct {
	opts GeoOptions
}

// NewGeo creates a geographic strategy.
func NewGeo(optFns ...func(o *GeoOptions)) (*Geo, error) {
	opts := GeoOptions{PostalRange: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StateField == "" && opts.CityField == "" && opts.PostalField == "" {
		return nil, errors.New("geo: at least one location field is required")
	}
	if opts.PostalRange < 0 {
		return nil, fmt.Errorf("geo: postal range must be >= 0, got %d", opts.PostalRange)
	}
	return &Geo{opts: opts}, nil
}

func (s *Geo) Name() string { return "geo" }

// Generate emits exact state/city groups, then postal-code range pairs.
func (s *Geo) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.opts.StateField != "" || s.opts.CityField != "" {
		if err := s.generateExact(records, sink); err != nil {
			return err
		}
	}
	if s.opts.PostalField != "" {
		if err := s.generatePostal(ctx, records, sink); err != nil {
			return err
		}
	}
	return nil
}

func (s *Geo) generateExact(records []model.Record, sink Sink) error {
	groups := make(map[string][]model.RecordID)
	for _, rec := range records {
		parts := make([]string, 0, 2)
		for _, field := range []string{s.opts.StateField, s.opts.CityField} {
			if field == "" {
				continue
			}
			raw, ok := rec.StringField(field)
			if !ok {
				parts = nil
				break
			}
			v := canonicalize(raw)
			if v == "" {
				parts = nil
				break
			}
			parts = append(parts, v)
		}
		if len(parts) == 0 {
			continue
		}
		key := strings.Join(parts, "\x1f")
		groups[key] = append(groups[key], rec.ID)
	}
	return emitGroups(s.Name(), groups, s.opts.Limits, sink)
}

// generatePostal sorts records by numeric postal code and emits pairs within
// PostalRange of each other via a forward scan. Non-numeric codes are
// excluded.
func (s *Geo) generatePostal(ctx context.Context, records []model.Record, sink Sink) error {
	type coded struct {
		code int
		id   model.RecordID
	}
	sorted := make([]coded, 0, len(records))
	for _, rec := range records {
		code, ok := s.postalCode(rec)
		if !ok {
			continue
		}
		sorted = append(sorted, coded{code: code, id: rec.ID})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].code != sorted[j].code {
			return sorted[i].code < sorted[j].code
		}
		return sorted[i].id.Less(sorted[j].id)
	})

	limits := s.opts.Limits.withDefaults()
	for i := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		emitted := 0
		for j := i + 1; j < len(sorted) && sorted[j].code-sorted[i].code <= s.opts.PostalRange; j++ {
			if limits.MaxBlockSize > 0 && emitted >= limits.MaxBlockSize {
				sink.Warn(Warning{
					Strategy:    s.Name(),
					BlockingKey: strconv.Itoa(sorted[i].code),
					BlockSize:   emitted,
					Reason:      "postal neighborhood exceeds max_block_size, truncated",
				})
				break
			}
			key := fmt.Sprintf("postal±%d", s.opts.PostalRange)
			if err := sink.Emit(model.NewCandidatePair(sorted[i].id, sorted[j].id, s.Name(), key)); err != nil {
				return err
			}
			emitted++
		}
	}
	return nil
}

func (s *Geo) postalCode(rec model.Record) (int, bool) {
	if raw, ok := rec.StringField(s.opts.PostalField); ok {
		code, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, false
		}
		return code, true
	}
	if f, ok := rec.Float64Field(s.opts.PostalField); ok {
		return int(f), true
	}
	return 0, false
}
