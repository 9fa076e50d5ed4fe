package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAdvancer struct {
	frames int
}

func (c *countingAdvancer) Frame() { c.frames++ }

func TestRunFramesParallel_AdvancesEverySystemByN(t *testing.T) {
	a := &countingAdvancer{}
	b := &countingAdvancer{}
	err := RunFramesParallel(context.Background(), []Advancer{a, b}, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, a.frames)
	assert.Equal(t, 10, b.frames)
}

func TestRunFramesParallel_PropagatesContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &countingAdvancer{}
	err := RunFramesParallel(ctx, []Advancer{a}, 10)
	assert.True(t, errors.Is(err, context.Canceled))
}
