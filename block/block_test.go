package block

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/linkage/model"
)

func testRecords() []model.Record {
	return []model.Record{
		{ID: "1", Fields: map[string]any{"name": "John Smith", "phone": "555-1234", "city": "Springfield"}},
		{ID: "2", Fields: map[string]any{"name": "Jon Smith", "phone": "555-1234", "city": "Springfield"}},
		{ID: "3", Fields: map[string]any{"name": "Jane Doe", "phone": "555-9999", "city": "Shelbyville"}},
		{ID: "4", Fields: map[string]any{"name": "Jane Doe", "city": "Shelbyville"}},
	}
}

func TestEngineRequiresStrategies(t *testing.T) {
	_, err := NewEngine()
	assert.ErrorIs(t, err, ErrNoStrategies)
}

func TestEngineExactPhoneBlocking(t *testing.T) {
	exact, err := NewExactKey([]string{"phone"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), testRecords())
	require.NoError(t, err)

	// Only records 1 and 2 share a phone; record 4 has none and must not
	// group with anything.
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, model.RecordID("1"), result.Pairs[0].IDA)
	assert.Equal(t, model.RecordID("2"), result.Pairs[0].IDB)
	assert.Equal(t, 1, result.Stats.PairsByStrategy["exact"])
}

func TestEngineDeduplicatesAcrossStrategies(t *testing.T) {
	byPhone, err := NewExactKey([]string{"phone"})
	require.NoError(t, err)
	byCity, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(byPhone, byCity)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), testRecords())
	require.NoError(t, err)

	// (1,2) from phone and city; (3,4) from city. The duplicate (1,2)
	// from the city strategy is dropped.
	require.Len(t, result.Pairs, 2)
	seen := map[string]bool{}
	for _, p := range result.Pairs {
		assert.True(t, p.IDA.Less(p.IDB), "pairs must be canonically oriented")
		require.False(t, seen[p.Key()], "no unordered pair may appear twice")
		seen[p.Key()] = true
	}
	assert.Equal(t, 1, result.Stats.Duplicates)
}

func TestEngineStreamCandidates(t *testing.T) {
	exact, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	seq, stats := engine.StreamCandidates(context.Background(), testRecords())

	var pairs []model.CandidatePair
	for pair, err := range seq {
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}
	assert.Len(t, pairs, 2)
	assert.Equal(t, 2, stats().PairsByStrategy["exact"])
}

func TestEngineStreamEarlyStop(t *testing.T) {
	exact, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	seq, _ := engine.StreamCandidates(context.Background(), testRecords())
	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestEngineCancellation(t *testing.T) {
	exact, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.GenerateCandidates(ctx, testRecords())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExactKeyMaxBlockSizeSkipsHub(t *testing.T) {
	records := make([]model.Record, 6)
	for i := range records {
		records[i] = model.Record{
			ID:     model.RecordID(string(rune('a' + i))),
			Fields: map[string]any{"city": "Hubtown"},
		}
	}

	exact, err := NewExactKey([]string{"city"}, func(o *ExactKeyOptions) {
		o.Limits.MaxBlockSize = 5
	})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, result.Pairs, "oversized block must not generate pairs")
	require.Len(t, result.Stats.Warnings, 1)
	assert.Equal(t, 6, result.Stats.Warnings[0].BlockSize)
}

func TestExactKeyDefaultMaxBlockSize(t *testing.T) {
	// One key shared by more records than DefaultLimits.MaxBlockSize: the
	// default hub cap must apply even when no limits are configured.
	records := make([]model.Record, DefaultLimits.MaxBlockSize+1)
	for i := range records {
		records[i] = model.Record{
			ID:     model.RecordID(fmt.Sprintf("rec-%04d", i)),
			Fields: map[string]any{"city": "Hubtown"},
		}
	}

	exact, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)

	assert.Empty(t, result.Pairs)
	require.Len(t, result.Stats.Warnings, 1)
	assert.Equal(t, len(records), result.Stats.Warnings[0].BlockSize)
}

func TestExactKeyNegativeMaxBlockSizeDisablesCap(t *testing.T) {
	records := make([]model.Record, 4)
	for i := range records {
		records[i] = model.Record{
			ID:     model.RecordID(string(rune('a' + i))),
			Fields: map[string]any{"city": "Hubtown"},
		}
	}

	exact, err := NewExactKey([]string{"city"}, func(o *ExactKeyOptions) {
		o.Limits.MaxBlockSize = -1
	})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, result.Pairs, 6)
	assert.Empty(t, result.Stats.Warnings)
}

func TestExactKeyCanonicalization(t *testing.T) {
	records := []model.Record{
		{ID: "1", Fields: map[string]any{"city": "  Springfield "}},
		{ID: "2", Fields: map[string]any{"city": "SPRINGFIELD"}},
	}
	exact, err := NewExactKey([]string{"city"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, result.Pairs, 1)
}

func TestExactKeyNullValuesNeverGroup(t *testing.T) {
	records := []model.Record{
		{ID: "1", Fields: map[string]any{"phone": ""}},
		{ID: "2", Fields: map[string]any{"phone": " "}},
		{ID: "3", Fields: map[string]any{}},
		{ID: "4", Fields: map[string]any{"phone": nil}},
	}
	exact, err := NewExactKey([]string{"phone"})
	require.NoError(t, err)
	engine, err := NewEngine(exact)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)
	assert.Empty(t, result.Pairs, "null/empty keys must not form a group")
}

func TestPhoneticBlocking(t *testing.T) {
	records := []model.Record{
		{ID: "1", Fields: map[string]any{"name": "Smith"}},
		{ID: "2", Fields: map[string]any{"name": "Smyth"}},
		{ID: "3", Fields: map[string]any{"name": "Jones"}},
	}
	phonetic, err := NewPhonetic("name")
	require.NoError(t, err)
	engine, err := NewEngine(phonetic)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, model.RecordID("1"), result.Pairs[0].IDA)
	assert.Equal(t, model.RecordID("2"), result.Pairs[0].IDB)
	assert.Equal(t, "S530", result.Pairs[0].BlockingKey)
}

func TestGraphTraversalBlocking(t *testing.T) {
	records := []model.Record{
		{ID: "1", Fields: map[string]any{"phone": "555-1234"}},
		{ID: "2", Fields: map[string]any{"phone": "555-1234", "address": "1 Main St"}},
		{ID: "3", Fields: map[string]any{"address": "1 Main St"}},
		{ID: "4", Fields: map[string]any{"phone": "555-0000"}},
	}
	graph, err := NewGraphTraversal([]string{"phone", "address"})
	require.NoError(t, err)
	engine, err := NewEngine(graph)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, p := range result.Pairs {
		keys[string(p.IDA)+"-"+string(p.IDB)] = true
	}
	// 1-2 share a phone node, 2-3 share an address node.
	assert.True(t, keys["1-2"])
	assert.True(t, keys["2-3"])
	assert.Len(t, result.Pairs, 2)
}

func TestGraphTraversalHubCap(t *testing.T) {
	records := make([]model.Record, 7)
	for i := range records {
		records[i] = model.Record{
			ID:     model.RecordID(string(rune('a' + i))),
			Fields: map[string]any{"address": "Big Office Tower"},
		}
	}
	graph, err := NewGraphTraversal([]string{"address"}, func(o *GraphTraversalOptions) {
		o.MaxEntitiesPerNode = 5
	})
	require.NoError(t, err)
	engine, err := NewEngine(graph)
	require.NoError(t, err)

	result, err := engine.GenerateCandidates(context.Background(), records)
	require.NoError(t, err)
	assert.Empty(t, result.Pairs)
	require.Len(t, result.Stats.Warnings, 1)
	assert.Equal(t, 7, result.Stats.Warnings[0].BlockSize)
}
