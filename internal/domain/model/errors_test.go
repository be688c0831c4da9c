package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindTimeout, Op: "shards", Message: "10s elapsed"})

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Contains(t, err.Error(), "timeout error [shards]")
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := &Error{Kind: KindAborted, Err: context.Canceled}
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrAborted))
}

func TestFallbackable(t *testing.T) {
	assert.True(t, Fallbackable(&Error{Kind: KindNetwork}))
	assert.True(t, Fallbackable(&Error{Kind: KindTimeout}))
	assert.True(t, Fallbackable(&Error{Kind: KindAPI, Status: 500}))
	assert.False(t, Fallbackable(&Error{Kind: KindAuth}))
	assert.False(t, Fallbackable(&Error{Kind: KindParse}))
	assert.False(t, Fallbackable(&Error{Kind: KindAborted}))
	assert.False(t, Fallbackable(errors.New("plain")))
}

func TestRequestHandleSettlesOnce(t *testing.T) {
	h, ctx := NewRequestHandle(context.Background(), "shards")
	assert.Equal(t, HandlePending, h.State())

	assert.True(t, h.Abort())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, h.Complete(), "an aborted handle must not complete")
	assert.False(t, h.Fail())
	assert.Equal(t, HandleAborted, h.State())
}

func TestRequestHandleDoneClosesOnSettle(t *testing.T) {
	h, _ := NewRequestHandle(context.Background(), "health")
	select {
	case <-h.Done():
		t.Fatal("pending handle reported done")
	default:
	}

	assert.True(t, h.Complete())
	select {
	case <-h.Done():
	default:
		t.Fatal("settled handle not done")
	}
	assert.False(t, h.Abort(), "settling twice must not close done again")
}
