package score

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/strdist"
)

// NullPolicy controls how a missing field value affects a pair's score.
type NullPolicy string

const (
	// NullPolicySkip excludes the field from the sum for that pair.
	NullPolicySkip NullPolicy = "skip"

	// NullPolicyZero contributes zero evidence.
	NullPolicyZero NullPolicy = "zero"

	// NullPolicyDisagree treats the missing value as a disagreement.
	NullPolicyDisagree NullPolicy = "disagree"
)

// FieldWeight is the per-field scoring configuration.
type FieldWeight struct {
	// Field is the record field to compare.
	Field string

	// Metric selects the similarity function. Default Jaro-Winkler.
	Metric strdist.Metric

	// MProbability is P(agreement | true match).
	MProbability float64

	// UProbability is P(agreement | true non-match).
	UProbability float64

	// AgreementThreshold is the similarity cutoff above which the field
	// counts as agreeing. Default 0.85.
	AgreementThreshold float64

	// Importance scales the field's contribution. Default 1.
	Importance float64

	// NullPolicy handles missing values. Default skip.
	NullPolicy NullPolicy
}

// ConfigError reports an invalid scoring configuration. It is fatal and
// surfaced before any processing begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid scoring config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid field weight %q: %s", e.Field, e.Reason)
}

// FieldComparisonError reports a single field comparison that could not be
// performed (e.g. an unsupported value type). It is recovered per pair: the
// field is excluded from the sum and the pair is still scored.
type FieldComparisonError struct {
	Field  string
	Reason string
}

func (e *FieldComparisonError) Error() string {
	return fmt.Sprintf("field %q comparison failed: %s", e.Field, e.Reason)
}

// Options configures the scorer thresholds.
type Options struct {
	// UpperThreshold classifies total scores at or above it as matches.
	// Default 3.
	UpperThreshold float64

	// LowerThreshold classifies total scores at or below it as
	// non-matches. Default 0.
	LowerThreshold float64

	// Logger receives recovered field comparison failures. Default discard.
	Logger *slog.Logger
}

// DefaultOptions are the scorer defaults.
var DefaultOptions = Options{
	UpperThreshold: 3,
	LowerThreshold: 0,
}

// Scorer computes weighted probabilistic similarity scores for candidate
// pairs. It is immutable after construction and safe for concurrent use.
type Scorer struct {
	weights []FieldWeight
	fns     []strdist.Func
	opts    Options
	logger  *slog.Logger
}

// New creates a scorer, validating the full configuration up front.
func New(weights []FieldWeight, optFns ...func(o *Options)) (*Scorer, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.UpperThreshold < opts.LowerThreshold {
		return nil, &ConfigError{Reason: fmt.Sprintf("upper threshold %v below lower threshold %v", opts.UpperThreshold, opts.LowerThreshold)}
	}
	if len(weights) == 0 {
		return nil, &ConfigError{Reason: "at least one field weight is required"}
	}

	normalized := make([]FieldWeight, len(weights))
	fns := make([]strdist.Func, len(weights))
	for i, w := range weights {
		if w.Field == "" {
			return nil, &ConfigError{Reason: "field name is required"}
		}
		if w.Metric == "" {
			w.Metric = strdist.MetricJaroWinkler
		}
		if w.AgreementThreshold == 0 {
			w.AgreementThreshold = 0.85
		}
		if w.Importance == 0 {
			w.Importance = 1
		}
		if w.NullPolicy == "" {
			w.NullPolicy = NullPolicySkip
		}

		if w.MProbability <= 0 || w.MProbability >= 1 {
			return nil, &ConfigError{Field: w.Field, Reason: fmt.Sprintf("m probability must be in (0,1), got %v", w.MProbability)}
		}
		if w.UProbability <= 0 || w.UProbability >= 1 {
			return nil, &ConfigError{Field: w.Field, Reason: fmt.Sprintf("u probability must be in (0,1), got %v", w.UProbability)}
		}
		if w.MProbability <= w.UProbability {
			return nil, &ConfigError{Field: w.Field, Reason: "m probability must exceed u probability"}
		}
		if w.AgreementThreshold < 0 || w.AgreementThreshold > 1 {
			return nil, &ConfigError{Field: w.Field, Reason: fmt.Sprintf("agreement threshold must be in [0,1], got %v", w.AgreementThreshold)}
		}
		if w.Importance < 0 {
			return nil, &ConfigError{Field: w.Field, Reason: fmt.Sprintf("importance must be positive, got %v", w.Importance)}
		}
		switch w.NullPolicy {
		case NullPolicySkip, NullPolicyZero, NullPolicyDisagree:
		default:
			return nil, &ConfigError{Field: w.Field, Reason: fmt.Sprintf("unknown null policy %q", w.NullPolicy)}
		}

		fn, err := strdist.Provider(w.Metric)
		if err != nil {
			return nil, &ConfigError{Field: w.Field, Reason: err.Error()}
		}

		normalized[i] = w
		fns[i] = fn
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scorer{weights: normalized, fns: fns, opts: opts, logger: logger}, nil
}

// Score compares two records field by field and returns the scored pair.
// A failed single-field comparison never aborts the pair: the failure is
// logged and that field is excluded from the sum, like a skipped null.
func (s *Scorer) Score(pair model.CandidatePair, a, b model.Record) model.ScoredPair {
	scored := model.ScoredPair{
		CandidatePair: pair,
		FieldScores:   make(map[string]float64, len(s.weights)),
	}

	var total float64
	for i, w := range s.weights {
		va, stateA := fieldState(a, w.Field)
		vb, stateB := fieldState(b, w.Field)

		if stateA == fieldUnsupported || stateB == fieldUnsupported {
			// Recovered locally: excluded from the sum, pair still scored.
			s.logComparisonError(pair, &FieldComparisonError{Field: w.Field, Reason: "unsupported value type"})
			continue
		}

		if stateA == fieldMissing || stateB == fieldMissing {
			switch w.NullPolicy {
			case NullPolicySkip:
				// Field excluded from sum and normalization.
			case NullPolicyZero:
				scored.FieldScores[w.Field] = 0
			case NullPolicyDisagree:
				scored.FieldScores[w.Field] = 0
				total += w.Importance * disagreementWeight(w)
			}
			continue
		}

		sim := clamp01(s.fns[i](va, vb))
		scored.FieldScores[w.Field] = sim

		if sim >= w.AgreementThreshold {
			total += w.Importance * agreementWeight(w)
		} else {
			total += w.Importance * disagreementWeight(w)
		}
	}

	scored.TotalScore = total
	scored.Decision = s.Decide(total)
	return scored
}

// Decide classifies a total score against the configured thresholds.
func (s *Scorer) Decide(total float64) model.Decision {
	switch {
	case total >= s.opts.UpperThreshold:
		return model.DecisionMatch
	case total <= s.opts.LowerThreshold:
		return model.DecisionNonMatch
	default:
		return model.DecisionPossibleMatch
	}
}

// UpperThreshold returns the configured match threshold.
func (s *Scorer) UpperThreshold() float64 { return s.opts.UpperThreshold }

// LowerThreshold returns the configured non-match threshold.
func (s *Scorer) LowerThreshold() float64 { return s.opts.LowerThreshold }

func (s *Scorer) logComparisonError(pair model.CandidatePair, err *FieldComparisonError) {
	s.logger.Warn("field comparison failed",
		"field", err.Field,
		"reason", err.Reason,
		"id_a", string(pair.IDA),
		"id_b", string(pair.IDB),
	)
}

func agreementWeight(w FieldWeight) float64 {
	return math.Log2(w.MProbability / w.UProbability)
}

func disagreementWeight(w FieldWeight) float64 {
	return math.Log2((1 - w.MProbability) / (1 - w.UProbability))
}

type valueState int

const (
	fieldPresent valueState = iota
	fieldMissing
	fieldUnsupported
)

// fieldState classifies a field value: a comparable string, a missing value
// (absent or nil, subject to the null policy), or an unsupported type
// (present but not comparable, recovered as a comparison failure).
func fieldState(rec model.Record, field string) (string, valueState) {
	v, exists := rec.Fields[field]
	if !exists || v == nil {
		return "", fieldMissing
	}
	s, isString := v.(string)
	if !isString {
		return "", fieldUnsupported
	}
	return s, fieldPresent
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
