package models

import "time"

// PairEvent is a decoded PairCreated log from the factory contract.
type PairEvent struct {
	Token0      string    `json:"token0"`
	Token1      string    `json:"token1"`
	PairAddress string    `json:"pair_address"`
	PairIndex   uint64    `json:"pair_index"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	ObservedAt  time.Time `json:"observed_at"`
}

// TokenOfInterest returns the non-base token of the pair and true when
// exactly one side matches the configured base token (case-insensitive hex
// comparison is the caller's job; addresses here are normalized lower-case).
func (p *PairEvent) TokenOfInterest(base string) (string, bool) {
	switch base {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	default:
		return "", false
	}
}
