package monitor

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// PairCreatedTopic is the event signature hash of
// PairCreated(address indexed token0, address indexed token1, address pair, uint256).
var PairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))

// ParsePairCreated decodes a raw factory log into a PairEvent. Addresses
// are normalized to lower-case hex.
func ParsePairCreated(lg types.Log) (*models.PairEvent, error) {
	if len(lg.Topics) != 3 {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Unexpected topic count in PairCreated log")
	}
	if lg.Topics[0] != PairCreatedTopic {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Log is not a PairCreated event")
	}
	if len(lg.Data) < 64 {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "PairCreated log data too short")
	}

	token0 := common.BytesToAddress(lg.Topics[1].Bytes())
	token1 := common.BytesToAddress(lg.Topics[2].Bytes())
	pair := common.BytesToAddress(lg.Data[:32])
	index := new(big.Int).SetBytes(lg.Data[32:64])

	return &models.PairEvent{
		Token0:      strings.ToLower(token0.Hex()),
		Token1:      strings.ToLower(token1.Hex()),
		PairAddress: strings.ToLower(pair.Hex()),
		PairIndex:   index.Uint64(),
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
		ObservedAt:  time.Now().UTC(),
	}, nil
}
