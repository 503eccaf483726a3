package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenRebind(t *testing.T) {
	ctx := context.Background()

	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	again, err := Listen(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, addr, again.Addr().String())
	require.NoError(t, again.Close())
}

func TestListenBadAddress(t *testing.T) {
	_, err := Listen(context.Background(), "not-an-address")
	assert.Error(t, err)
}
