package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairEventTokenOfInterest(t *testing.T) {
	ev := &PairEvent{
		Token0: "0xaaa",
		Token1: "0xweth",
	}

	token, ok := ev.TokenOfInterest("0xweth")
	require.True(t, ok)
	assert.Equal(t, "0xaaa", token)

	ev = &PairEvent{Token0: "0xweth", Token1: "0xbbb"}
	token, ok = ev.TokenOfInterest("0xweth")
	require.True(t, ok)
	assert.Equal(t, "0xbbb", token)

	ev = &PairEvent{Token0: "0xaaa", Token1: "0xbbb"}
	_, ok = ev.TokenOfInterest("0xweth")
	assert.False(t, ok, "pairs without the base token are ignored")
}

func TestLiquidityBuckets(t *testing.T) {
	assert.Equal(t, 10, Checkpoint(0))
	assert.Equal(t, 200, Checkpoint(LiquidityCheckpoints-1))

	var b LiquidityBuckets
	assert.Nil(t, b.Latest())

	v1, v2 := 5.0, 9.0
	b[0] = &v1
	b[3] = &v2
	require.NotNil(t, b.Latest())
	assert.Equal(t, 9.0, *b.Latest())
}
