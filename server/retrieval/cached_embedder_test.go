package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	next := new(MockEmbedder)
	next.On("Embedding", ctx, "where is my order?").Return([]float32{0.1, 0.2}, nil).Once()

	e := NewCachedEmbedder(next, 10, time.Minute)

	v, err := e.Embedding(ctx, "where is my order?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)

	v, err = e.Embedding(ctx, "  where is my order?\n")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)

	next.AssertNumberOfCalls(t, "Embedding", 1)
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	next := new(MockEmbedder)
	next.On("Embedding", ctx, "refund").Return(nil, errors.New("upstream down")).Once()
	next.On("Embedding", ctx, "refund").Return([]float32{1}, nil).Once()

	e := NewCachedEmbedder(next, 10, time.Minute)

	_, err := e.Embedding(ctx, "refund")
	require.Error(t, err)

	v, err := e.Embedding(ctx, "refund")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	next.AssertNumberOfCalls(t, "Embedding", 2)
}
