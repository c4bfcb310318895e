package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSet_Digest(t *testing.T) {
	t.Run("Order independent", func(t *testing.T) {
		a := RowSet{{ID: 1, Payload: "a"}, {ID: 2, Payload: "b"}, {ID: 3, Payload: "c"}}
		b := RowSet{{ID: 3, Payload: "c"}, {ID: 1, Payload: "a"}, {ID: 2, Payload: "b"}}
		assert.Equal(t, a.Digest(), b.Digest())
	})

	t.Run("Payload changes digest", func(t *testing.T) {
		a := RowSet{{ID: 1, Payload: "a"}}
		b := RowSet{{ID: 1, Payload: "b"}}
		assert.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("Field boundaries are unambiguous", func(t *testing.T) {
		a := RowSet{{ID: 1, Payload: "ab"}, {ID: 2, Payload: ""}}
		b := RowSet{{ID: 1, Payload: "a"}, {ID: 2, Payload: "b"}}
		assert.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("Does not reorder caller slice", func(t *testing.T) {
		rs := RowSet{{ID: 9}, {ID: 1}}
		_ = rs.Digest()
		assert.Equal(t, int64(9), rs[0].ID)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Len(t, RowSet{}.Digest(), 64)
		assert.Equal(t, 0, RowSet(nil).Len())
	})
}

func TestIdentifierSet(t *testing.T) {
	src := []int64{5, 6, 7, 8, 9}
	set := NewIdentifierSet(src)
	src[0] = 100

	assert.Equal(t, 5, set.Len())
	assert.Equal(t, int64(5), set.At(0), "set holds a private copy")
	assert.Equal(t, []int64{5, 6, 7, 8, 9}, set.Values())
}

func TestIdentifierSet_Chunks(t *testing.T) {
	set := NewIdentifierSet([]int64{1, 2, 3, 4, 5, 6, 7})

	tests := []struct {
		name string
		size int
		want [][]int64
	}{
		{"Exact multiple", 7, [][]int64{{1, 2, 3, 4, 5, 6, 7}}},
		{"Remainder", 3, [][]int64{{1, 2, 3}, {4, 5, 6}, {7}}},
		{"Larger than set", 100, [][]int64{{1, 2, 3, 4, 5, 6, 7}}},
		{"One per chunk", 1, [][]int64{{1}, {2}, {3}, {4}, {5}, {6}, {7}}},
		{"Invalid size", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Chunks(tt.size))
		})
	}

	t.Run("Appending to a chunk does not clobber the next", func(t *testing.T) {
		chunks := set.Chunks(3)
		_ = append(chunks[0], 99)
		assert.Equal(t, int64(4), chunks[1][0])
	})

	t.Run("Empty set", func(t *testing.T) {
		assert.Nil(t, NewIdentifierSet(nil).Chunks(10))
	})
}

func TestConvert(t *testing.T) {
	d := 1500*time.Microsecond + 7*time.Nanosecond
	assert.Equal(t, int64(1), ToMillis(d))
	assert.Equal(t, int64(1500007), ToNanos(d))
	assert.InDelta(t, 1.500007, ToMillisFloat(d), 1e-9)
}

func TestTrialError(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&TrialError{Kind: ErrExecution, Strategy: "any_array", Trial: 3, Err: cause})

	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrResourceAcquisition)
	assert.Contains(t, err.Error(), "any_array trial 3")

	var te *TrialError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &te))
	assert.Equal(t, 3, te.Trial)
}

func TestExecution(t *testing.T) {
	assert.Nil(t, Execution(nil))

	cause := errors.New("syntax error")
	wrapped := Execution(cause)
	assert.ErrorIs(t, wrapped, ErrExecution)
	assert.ErrorIs(t, wrapped, cause)
	assert.Same(t, wrapped, Execution(wrapped), "already wrapped errors pass through")
}

func TestIsCleanupOnly(t *testing.T) {
	cleanup := &CleanupError{Object: "lookup_ids", Err: errors.New("conn closed")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Cleanup alone", cleanup, true},
		{"Wrapped cleanup", fmt.Errorf("trial: %w", cleanup), true},
		{"Execution alone", Execution(errors.New("boom")), false},
		{"Execution and cleanup", multierror.Append(Execution(errors.New("boom")), cleanup), false},
		{"Unrelated", errors.New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCleanupOnly(tt.err))
		})
	}

	assert.ErrorIs(t, cleanup, ErrCleanup)
}

func TestSummary_Failed(t *testing.T) {
	assert.False(t, (&Summary{Status: StatusComplete}).Failed())
	assert.True(t, (&Summary{Status: StatusRetriesExhausted}).Failed())
	assert.True(t, (&Summary{Status: StatusCancelled}).Failed())
}
