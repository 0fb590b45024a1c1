package captable

import (
	"context"
	"fmt"
	"math/big"

	"chainequity/internal/store"
)

// BalanceChange is one entry in a holder's balance-change history (spec
// §4.5, "Balance-change history for address A").
type BalanceChange struct {
	BlockNumber       uint64 `json:"blockNumber"`
	TransactionHash   string `json:"transactionHash"`
	Classification    string `json:"classification"`
	Change            string `json:"change"`
	CumulativeBalance string `json:"cumulativeBalance"`
	Timestamp         uint64 `json:"timestamp"`
}

const (
	classSelfTransfer      = "Self Transfer"
	classTransferSent      = "Transfer Sent"
	classMint              = "Mint"
	classTransferReceived  = "Transfer Received"
)

// BalanceHistory filters Transfer events touching addr, ascending, and
// returns each with its classification and running cumulative balance.
func (e *Engine) BalanceHistory(ctx context.Context, addr string) ([]BalanceChange, error) {
	events, err := e.Store.GetEventsByAddress(ctx, addr, 0)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", addr, err)
	}
	// GetEventsByAddress returns descending order; reverse for ascending replay.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	cumulative := new(big.Int)
	var out []BalanceChange
	for _, ev := range events {
		if ev.EventType != store.EventTransfer {
			continue
		}
		from := valueOr(ev.FromAddress, "")
		to := valueOr(ev.ToAddress, "")
		if from != addr && to != addr {
			continue
		}
		v, ok := new(big.Int).SetString(valueOr(ev.Amount, "0"), 10)
		if !ok {
			v = new(big.Int)
		}

		var class string
		change := new(big.Int)
		switch {
		case from == addr && to == addr:
			class = classSelfTransfer
		case from == addr:
			class = classTransferSent
			change.Neg(v)
		case isZeroOrEmpty(ev.FromAddress) && to == addr:
			class = classMint
			change.Set(v)
		default:
			class = classTransferReceived
			change.Set(v)
		}
		cumulative.Add(cumulative, change)

		out = append(out, BalanceChange{
			BlockNumber:       ev.BlockNumber,
			TransactionHash:   ev.TransactionHash,
			Classification:    class,
			Change:            change.String(),
			CumulativeBalance: new(big.Int).Set(cumulative).String(),
			Timestamp:         ev.Timestamp,
		})
	}
	return out, nil
}
