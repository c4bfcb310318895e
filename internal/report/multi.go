package report

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// Multi fans every summary out to several sinks. A failing sink does not
// stop the others; their errors are combined.
type Multi struct {
	sinks []types.Sink
}

// NewMulti returns a sink writing to all of sinks, in order.
func NewMulti(sinks ...types.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add appends a sink.
func (m *Multi) Add(s types.Sink) {
	m.sinks = append(m.sinks, s)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Report(ctx context.Context, summary types.Summary, samples []types.TimingSample) error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if err := s.Report(ctx, summary, samples); err != nil {
			result = multierror.Append(result, fmt.Errorf("%T: %w", s, err))
		}
	}
	return result.ErrorOrNil()
}

func (m *Multi) Close() error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%T: %w", s, err))
		}
	}
	return result.ErrorOrNil()
}
