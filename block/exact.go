package block

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Strategy = (*ExactKey)(nil)

// ExactKeyOptions configures the exact-key strategy.
type ExactKeyOptions struct {
	// Fields are canonicalized (trimmed, case-folded) and concatenated
	// into the blocking key. Records missing any field are excluded.
	Fields []string

	Limits Limits
}

// ExactKey groups records by the canonicalized concatenation of one or more
// fields and emits all within-group pairs.
type ExactKey struct {
	opts ExactKeyOptions
}

// NewExactKey creates an exact-key strategy over the given fields.
func NewExactKey(fields []string, optFns ...func(o *ExactKeyOptions)) (*ExactKey, error) {
	opts := ExactKeyOptions{Fields: fields}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Fields) == 0 {
		return nil, errors.New("exact: at least one field is required")
	}
	return &ExactKey{opts: opts}, nil
}

func (s *ExactKey) Name() string { return "exact" }

// Generate groups records by key and emits within-group pairs.
// Records with a null, missing, or empty key component never form a group.
func (s *ExactKey) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	groups := make(map[string][]model.RecordID)
	for _, rec := range records {
		key, ok := s.key(rec)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], rec.ID)
	}
	return emitGroups(s.Name(), groups, s.opts.Limits, sink)
}

func (s *ExactKey) key(rec model.Record) (string, bool) {
	parts := make([]string, 0, len(s.opts.Fields))
	for _, field := range s.opts.Fields {
		raw, ok := rec.StringField(field)
		if !ok {
			return "", false
		}
		v := canonicalize(raw)
		if v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "\x1f"), true
}
