package scanner

import "github.com/zero-given/token-monitor/internal/models"

// RecordLiquidity writes the current liquidity reading into the checkpoint
// bucket for totalScans, carrying all other buckets forward unchanged.
//
// A bucket exists for every 10th scan up to 200. The reading is only
// recorded when the scan count lands exactly on a checkpoint that is also a
// multiple of the sample interval; any other scan count leaves the series
// untouched. Past the last checkpoint the series is capped.
func RecordLiquidity(prev models.LiquidityBuckets, totalScans int, liquidity float64, sampleInterval int) models.LiquidityBuckets {
	next := prev
	if sampleInterval < 1 {
		sampleInterval = 1
	}
	if totalScans < 10 || totalScans > models.LiquidityCheckpoints*10 {
		return next
	}
	if totalScans%10 != 0 || totalScans%sampleInterval != 0 {
		return next
	}

	v := liquidity
	next[totalScans/10-1] = &v
	return next
}
