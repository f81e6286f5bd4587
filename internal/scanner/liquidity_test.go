package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-given/token-monitor/internal/models"
)

func TestRecordLiquidityCheckpointGrid(t *testing.T) {
	var buckets models.LiquidityBuckets

	// Scans 1..25 with liquidity equal to the scan number
	for scan := 1; scan <= 25; scan++ {
		buckets = RecordLiquidity(buckets, scan, float64(scan), 1)
	}

	require.NotNil(t, buckets[0])
	assert.Equal(t, 10.0, *buckets[0])
	require.NotNil(t, buckets[1])
	assert.Equal(t, 20.0, *buckets[1])
	assert.Nil(t, buckets[2], "checkpoint 30 not reached yet")
	for i := 3; i < models.LiquidityCheckpoints; i++ {
		assert.Nil(t, buckets[i])
	}
}

func TestRecordLiquidityNonCheckpointCarriesForward(t *testing.T) {
	var buckets models.LiquidityBuckets
	buckets = RecordLiquidity(buckets, 10, 42.0, 1)

	// Scans between checkpoints must not change anything
	for scan := 11; scan <= 19; scan++ {
		buckets = RecordLiquidity(buckets, scan, 999.0, 1)
	}

	require.NotNil(t, buckets[0])
	assert.Equal(t, 42.0, *buckets[0])
	assert.Nil(t, buckets[1])
}

func TestRecordLiquiditySampleInterval(t *testing.T) {
	var buckets models.LiquidityBuckets

	// Interval 3: checkpoint 10 is not a multiple of 3, checkpoint 30 is
	buckets = RecordLiquidity(buckets, 10, 10.0, 3)
	assert.Nil(t, buckets[0])

	buckets = RecordLiquidity(buckets, 30, 30.0, 3)
	require.NotNil(t, buckets[2])
	assert.Equal(t, 30.0, *buckets[2])
}

func TestRecordLiquidityCappedBeyondLastCheckpoint(t *testing.T) {
	var buckets models.LiquidityBuckets
	buckets = RecordLiquidity(buckets, 200, 1.5, 1)
	require.NotNil(t, buckets[19])

	before := buckets
	buckets = RecordLiquidity(buckets, 210, 99.0, 1)
	buckets = RecordLiquidity(buckets, 500, 99.0, 1)
	assert.Equal(t, before, buckets)
}

func TestRecordLiquidityOverwritesOnRepeatCheckpoint(t *testing.T) {
	var buckets models.LiquidityBuckets
	buckets = RecordLiquidity(buckets, 10, 1.0, 1)
	buckets = RecordLiquidity(buckets, 10, 2.0, 1)

	require.NotNil(t, buckets[0])
	assert.Equal(t, 2.0, *buckets[0])
}

func TestRecordLiquidityZeroReadingIsRecorded(t *testing.T) {
	var buckets models.LiquidityBuckets
	buckets = RecordLiquidity(buckets, 10, 0.0, 1)

	require.NotNil(t, buckets[0], "a zero reading is a reading, not a missing slot")
	assert.Equal(t, 0.0, *buckets[0])
}
