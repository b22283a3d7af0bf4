package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/strdist"
)

func pair(a, b model.Record) model.CandidatePair {
	return model.NewCandidatePair(a.ID, b.ID, "test", "k")
}

func TestScoreAgreementAccumulation(t *testing.T) {
	weights := []FieldWeight{
		{Field: "name", Metric: strdist.MetricJaroWinkler, MProbability: 0.9, UProbability: 0.1, Importance: 0.6},
		{Field: "phone", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, Importance: 0.4, AgreementThreshold: 1},
	}
	scorer, err := New(weights, func(o *Options) {
		o.UpperThreshold = 3
		o.LowerThreshold = 0
	})
	require.NoError(t, err)

	a := model.Record{ID: "1", Fields: map[string]any{"name": "John Smith", "phone": "555-1234"}}
	b := model.Record{ID: "2", Fields: map[string]any{"name": "Jon Smith", "phone": "555-1234"}}

	scored := scorer.Score(pair(a, b), a, b)

	// Both fields agree: log2(0.9/0.1) ≈ 3.17 weighted by 0.6 and 0.4.
	expected := (0.6 + 0.4) * math.Log2(0.9/0.1)
	assert.InDelta(t, expected, scored.TotalScore, 1e-9)
	assert.Equal(t, model.DecisionMatch, scored.Decision)

	require.Contains(t, scored.FieldScores, "name")
	require.Contains(t, scored.FieldScores, "phone")
	assert.Equal(t, 1.0, scored.FieldScores["phone"])
}

func TestScoreDisagreementPenalty(t *testing.T) {
	weights := []FieldWeight{
		{Field: "phone", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 1},
	}
	scorer, err := New(weights)
	require.NoError(t, err)

	a := model.Record{ID: "1", Fields: map[string]any{"phone": "555-1234"}}
	b := model.Record{ID: "2", Fields: map[string]any{"phone": "555-9999"}}

	scored := scorer.Score(pair(a, b), a, b)
	assert.InDelta(t, math.Log2(0.1/0.9), scored.TotalScore, 1e-9)
	assert.Equal(t, model.DecisionNonMatch, scored.Decision)
}

func TestScorePossibleMatchBand(t *testing.T) {
	weights := []FieldWeight{
		{Field: "name", MProbability: 0.9, UProbability: 0.3},
	}
	scorer, err := New(weights, func(o *Options) {
		o.UpperThreshold = 2
		o.LowerThreshold = 0.5
	})
	require.NoError(t, err)

	a := model.Record{ID: "1", Fields: map[string]any{"name": "John Smith"}}
	b := model.Record{ID: "2", Fields: map[string]any{"name": "John Smith"}}

	// Single agreeing field: log2(0.9/0.3) ≈ 1.58, between the thresholds.
	scored := scorer.Score(pair(a, b), a, b)
	assert.Equal(t, model.DecisionPossibleMatch, scored.Decision)
}

func TestScoreNullPolicies(t *testing.T) {
	a := model.Record{ID: "1", Fields: map[string]any{"name": "x"}}
	b := model.Record{ID: "2", Fields: map[string]any{"name": "x"}}

	base := FieldWeight{Field: "name", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 1}
	missing := FieldWeight{Field: "phone", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 1}

	agreeWeight := math.Log2(0.9 / 0.1)
	disagreeWeight := math.Log2(0.1 / 0.9)

	tests := []struct {
		name          string
		policy        NullPolicy
		expectedTotal float64
		scoredFields  int
	}{
		{"Skip", NullPolicySkip, agreeWeight, 1},
		{"Zero", NullPolicyZero, agreeWeight, 2},
		{"Disagree", NullPolicyDisagree, agreeWeight + disagreeWeight, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing.NullPolicy = tt.policy
			scorer, err := New([]FieldWeight{base, missing})
			require.NoError(t, err)

			scored := scorer.Score(pair(a, b), a, b)
			assert.InDelta(t, tt.expectedTotal, scored.TotalScore, 1e-9)
			assert.Len(t, scored.FieldScores, tt.scoredFields)
		})
	}
}

func TestScoreUnsupportedTypeRecovered(t *testing.T) {
	weights := []FieldWeight{
		{Field: "name", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 1},
		{Field: "age", Metric: strdist.MetricExact, MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 1},
	}
	scorer, err := New(weights)
	require.NoError(t, err)

	a := model.Record{ID: "1", Fields: map[string]any{"name": "x", "age": 42}}
	b := model.Record{ID: "2", Fields: map[string]any{"name": "x", "age": 42}}

	// The malformed age comparison must not abort the pair: name evidence
	// alone remains.
	scored := scorer.Score(pair(a, b), a, b)
	assert.InDelta(t, math.Log2(0.9/0.1), scored.TotalScore, 1e-9)
	assert.NotContains(t, scored.FieldScores, "age")
	assert.Contains(t, scored.FieldScores, "name")
}

func TestScoreFieldScoreBounds(t *testing.T) {
	weights := []FieldWeight{
		{Field: "name", Metric: strdist.MetricJaroWinkler, MProbability: 0.9, UProbability: 0.1},
		{Field: "addr", Metric: strdist.MetricNGram, MProbability: 0.8, UProbability: 0.2},
	}
	scorer, err := New(weights)
	require.NoError(t, err)

	a := model.Record{ID: "1", Fields: map[string]any{"name": "John Smith", "addr": "12 Main Street"}}
	b := model.Record{ID: "2", Fields: map[string]any{"name": "Jane Doe", "addr": "99 Elm Road"}}

	scored := scorer.Score(pair(a, b), a, b)
	for field, sim := range scored.FieldScores {
		assert.GreaterOrEqual(t, sim, 0.0, field)
		assert.LessOrEqual(t, sim, 1.0, field)
	}
}

func TestNewValidation(t *testing.T) {
	valid := FieldWeight{Field: "name", MProbability: 0.9, UProbability: 0.1}

	tests := []struct {
		name    string
		weights []FieldWeight
		optFn   func(o *Options)
	}{
		{"NoFields", nil, nil},
		{"EmptyFieldName", []FieldWeight{{MProbability: 0.9, UProbability: 0.1}}, nil},
		{"MOutOfRange", []FieldWeight{{Field: "x", MProbability: 1.5, UProbability: 0.1}}, nil},
		{"UOutOfRange", []FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0}}, nil},
		{"MNotAboveU", []FieldWeight{{Field: "x", MProbability: 0.5, UProbability: 0.5}}, nil},
		{"NegativeImportance", []FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0.1, Importance: -1}}, nil},
		{"BadThreshold", []FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0.1, AgreementThreshold: 2}}, nil},
		{"BadNullPolicy", []FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0.1, NullPolicy: "explode"}}, nil},
		{"BadMetric", []FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0.1, Metric: "bogus"}}, nil},
		{"InvertedThresholds", []FieldWeight{valid}, func(o *Options) { o.UpperThreshold = 0; o.LowerThreshold = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.optFn != nil {
				_, err = New(tt.weights, tt.optFn)
			} else {
				_, err = New(tt.weights)
			}
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestDecide(t *testing.T) {
	scorer, err := New([]FieldWeight{{Field: "x", MProbability: 0.9, UProbability: 0.1}}, func(o *Options) {
		o.UpperThreshold = 2
		o.LowerThreshold = -1
	})
	require.NoError(t, err)

	assert.Equal(t, model.DecisionMatch, scorer.Decide(2))
	assert.Equal(t, model.DecisionMatch, scorer.Decide(5))
	assert.Equal(t, model.DecisionPossibleMatch, scorer.Decide(0))
	assert.Equal(t, model.DecisionNonMatch, scorer.Decide(-1))
	assert.Equal(t, model.DecisionNonMatch, scorer.Decide(-4))
}
