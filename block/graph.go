package block

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Strategy = (*GraphTraversal)(nil)

// GraphTraversalOptions configures the graph-traversal strategy.
type GraphTraversalOptions struct {
	// NodeFields name the fields whose values act as intermediate nodes
	// in the bipartite record-to-node graph (e.g. phone, address).
	NodeFields []string

	// MaxEntitiesPerNode caps how many records a single node may connect.
	// Busier nodes are hubs (e.g. a shared office building) and are
	// skipped with a warning. Default DefaultLimits.MaxBlockSize.
	MaxEntitiesPerNode int
}

// GraphTraversal proposes records sharing a common intermediate node — the
// same phone number, the same address — as candidates via a bipartite
// relationship graph.
type GraphTraversal struct {
	opts GraphTraversalOptions
}

// NewGraphTraversal creates a graph-traversal strategy over the given node
// fields.
func NewGraphTraversal(nodeFields []string, optFns ...func(o *GraphTraversalOptions)) (*GraphTraversal, error) {
	opts := GraphTraversalOptions{
		NodeFields:         nodeFields,
		MaxEntitiesPerNode: DefaultLimits.MaxBlockSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.NodeFields) == 0 {
		return nil, errors.New("graph: at least one node field is required")
	}
	return &GraphTraversal{opts: opts}, nil
}

func (s *GraphTraversal) Name() string { return "graph" }

// Generate builds node adjacency bitmaps and emits all record pairs attached
// to the same node. Null/empty values never form a node.
func (s *GraphTraversal) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// node key -> bitmap of dense record indices
	adjacency := make(map[string]*roaring.Bitmap)
	for i, rec := range records {
		for _, field := range s.opts.NodeFields {
			raw, ok := rec.StringField(field)
			if !ok {
				continue
			}
			value := canonicalize(raw)
			if value == "" {
				continue
			}
			key := field + "\x1f" + value
			bm, ok := adjacency[key]
			if !ok {
				bm = roaring.New()
				adjacency[key] = bm
			}
			bm.Add(uint32(i))
		}
	}

	for key, bm := range adjacency {
		card := int(bm.GetCardinality())
		if card < 2 {
			continue
		}
		if s.opts.MaxEntitiesPerNode > 0 && card > s.opts.MaxEntitiesPerNode {
			sink.Warn(Warning{
				Strategy:    s.Name(),
				BlockingKey: key,
				BlockSize:   card,
				Reason:      "node exceeds max_entities_per_node, skipped",
			})
			continue
		}
		ids := bm.ToArray()
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if err := sink.Emit(model.NewCandidatePair(records[ids[i]].ID, records[ids[j]].ID, s.Name(), key)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
