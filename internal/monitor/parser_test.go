package monitor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairCreatedLog(token0, token1, pair common.Address, index int64, block uint64) types.Log {
	data := make([]byte, 64)
	copy(data[:32], common.LeftPadBytes(pair.Bytes(), 32))
	data[63] = byte(index)

	return types.Log{
		Address: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		Topics: []common.Hash{
			PairCreatedTopic,
			common.BytesToHash(common.LeftPadBytes(token0.Bytes(), 32)),
			common.BytesToHash(common.LeftPadBytes(token1.Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xdeadbeef"),
	}
}

func TestParsePairCreated(t *testing.T) {
	token0 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token1 := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pair := common.HexToAddress("0x3333333333333333333333333333333333333333")

	ev, err := ParsePairCreated(pairCreatedLog(token0, token1, pair, 42, 19000000))
	require.NoError(t, err)

	assert.Equal(t, "0x1111111111111111111111111111111111111111", ev.Token0)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", ev.Token1, "addresses normalized to lower case")
	assert.Equal(t, "0x3333333333333333333333333333333333333333", ev.PairAddress)
	assert.Equal(t, uint64(42), ev.PairIndex)
	assert.Equal(t, uint64(19000000), ev.BlockNumber)
}

func TestParsePairCreatedRejectsWrongTopic(t *testing.T) {
	lg := pairCreatedLog(
		common.HexToAddress("0x1"), common.HexToAddress("0x2"),
		common.HexToAddress("0x3"), 1, 1)
	lg.Topics[0] = common.HexToHash("0xabcdef")

	_, err := ParsePairCreated(lg)
	assert.Error(t, err)
}

func TestParsePairCreatedRejectsShortData(t *testing.T) {
	lg := pairCreatedLog(
		common.HexToAddress("0x1"), common.HexToAddress("0x2"),
		common.HexToAddress("0x3"), 1, 1)
	lg.Data = lg.Data[:16]

	_, err := ParsePairCreated(lg)
	assert.Error(t, err)

	lg.Topics = lg.Topics[:2]
	_, err = ParsePairCreated(lg)
	assert.Error(t, err)
}
