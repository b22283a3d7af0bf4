package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/hupe1980/linkage/codec"
	"github.com/hupe1980/linkage/model"
)

// Compile time check to ensure NDJSONEdgeSink satisfies the EdgeSink interface.
var _ EdgeSink = (*NDJSONEdgeSink)(nil)

// ndjsonHeader is the first line of an edge file. It records the codec that
// wrote the remaining lines so a replay can select it by name.
type ndjsonHeader struct {
	Codec string `json:"codec"`
}

// NDJSONEdgeSinkOptions configures an NDJSON edge sink.
type NDJSONEdgeSinkOptions struct {
	// Codec encodes the header and edge lines. Default codec.Default.
	Codec codec.Codec

	// CompressionLevel is the gzip level. Default gzip.DefaultCompression.
	CompressionLevel int
}

// NDJSONEdgeSink writes edges as a gzip-compressed stream of JSON lines:
// one header line naming the codec, then one edge per line. Edge keys are
// tracked for the sink's lifetime, so replaying the same edges appends
// nothing and the file stays idempotent.
type NDJSONEdgeSink struct {
	mu   sync.Mutex
	gz   *gzip.Writer
	bw   *bufio.Writer
	c    codec.Codec
	seen map[string]struct{}
	err  error
}

// NewNDJSONEdgeSink creates a sink writing to w and emits the header line.
func NewNDJSONEdgeSink(w io.Writer, optFns ...func(o *NDJSONEdgeSinkOptions)) (*NDJSONEdgeSink, error) {
	opts := NDJSONEdgeSinkOptions{
		Codec:            codec.Default,
		CompressionLevel: gzip.DefaultCompression,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gz, err := gzip.NewWriterLevel(w, opts.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}

	s := &NDJSONEdgeSink{
		gz:   gz,
		bw:   bufio.NewWriter(gz),
		c:    opts.Codec,
		seen: make(map[string]struct{}),
	}
	if err := s.writeLine(ndjsonHeader{Codec: opts.Codec.Name()}); err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert appends edges not yet present in the stream. The collection name is
// ignored: one sink writes one file. A sink that has previously failed keeps
// returning its first error.
func (s *NDJSONEdgeSink) Upsert(ctx context.Context, _ string, edges []model.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	for _, edge := range edges {
		key := edge.Key()
		if _, dup := s.seen[key]; dup {
			continue
		}
		if err := s.writeLine(edge); err != nil {
			s.err = err
			return err
		}
		s.seen[key] = struct{}{}
	}
	return nil
}

// Close flushes and closes the compressed stream. The underlying writer is
// not closed.
func (s *NDJSONEdgeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if err := s.bw.Flush(); err != nil {
		s.err = err
		return err
	}
	if err := s.gz.Close(); err != nil {
		s.err = err
		return err
	}
	return nil
}

func (s *NDJSONEdgeSink) writeLine(v any) error {
	b, err := s.c.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode edge line: %w", err)
	}
	if _, err := s.bw.Write(b); err != nil {
		return err
	}
	return s.bw.WriteByte('\n')
}

// ReadNDJSONEdges replays a stream written by NDJSONEdgeSink. The codec is
// selected from the header line; duplicate edge keys collapse to the last
// occurrence, so a replayed file round-trips to the same edge set.
func ReadNDJSONEdges(r io.Reader) ([]model.Edge, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("edge stream missing header line")
	}

	var header ndjsonHeader
	if err := (codec.JSON{}).Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("decode header line: %w", err)
	}
	c, ok := codec.ByName(header.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown edge stream codec %q", header.Codec)
	}

	byKey := make(map[string]model.Edge)
	var order []string
	for scanner.Scan() {
		var edge model.Edge
		if err := c.Unmarshal(scanner.Bytes(), &edge); err != nil {
			return nil, fmt.Errorf("decode edge line: %w", err)
		}
		key := edge.Key()
		if _, dup := byKey[key]; !dup {
			order = append(order, key)
		}
		byKey[key] = edge
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	edges := make([]model.Edge, 0, len(order))
	for _, key := range order {
		edges = append(edges, byKey[key])
	}
	return edges, nil
}
