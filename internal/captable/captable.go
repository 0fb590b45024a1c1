// Package captable reconstructs the ownership table, either as the current
// cached snapshot or as a historical snapshot at an arbitrary block height
// (spec §4.5). Everything here is a pure function over Store state; no
// component in this package writes to the Store.
package captable

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"chainequity/internal/store"
)

// ZeroAddress is the canonical null/burn address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Reader is the read-only subset of the Store the engine depends on,
// following the teacher's habit (cmd/explorer/service.go) of depending on
// narrow interfaces rather than the concrete store so tests can supply an
// in-memory fake.
type Reader interface {
	GetAllBalances(ctx context.Context, limit int) ([]store.Balance, error)
	GetMetadata(ctx context.Context, key string) (string, bool, error)
	GetEventsByBlockRange(ctx context.Context, from, to uint64) ([]store.Event, error)
	GetEventsByAddress(ctx context.Context, addr string, limit int) ([]store.Event, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Entry is one holder's row in a cap-table snapshot.
type Entry struct {
	Address             string  `json:"address"`
	RawBalance          string  `json:"rawBalance"`
	BalanceFormatted    string  `json:"balanceFormatted"`
	OwnershipPercentage float64 `json:"ownershipPercentage"`
	LastUpdatedBlock    uint64  `json:"lastUpdatedBlock"`
}

// Snapshot is the reconstructed cap table at a point in time (spec §4.5).
type Snapshot struct {
	TotalSupply          string  `json:"totalSupply"`
	TotalSupplyFormatted string  `json:"totalSupplyFormatted"`
	SplitMultiplier      float64 `json:"splitMultiplier"`
	HolderCount          int     `json:"holderCount"`
	Entries              []Entry `json:"entries"`
	BlockNumber          uint64  `json:"blockNumber"`
}

// Engine reconstructs cap tables over a Reader.
type Engine struct {
	Store    Reader
	Decimals uint8 // token's fixed unit count, e.g. 18
}

// New constructs an Engine. decimals defaults to 18 when 0 is passed, so a
// genuine 0-decimal token is configured by setting Engine.Decimals to 0
// after New rather than through this argument.
func New(s Reader, decimals uint8) *Engine {
	if decimals == 0 {
		decimals = 18
	}
	return &Engine{Store: s, Decimals: decimals}
}

func isZeroOrEmpty(addr *string) bool {
	return addr == nil || *addr == "" || *addr == ZeroAddress
}

func (e *Engine) splitMultiplier(ctx context.Context) (int64, error) {
	raw, ok, err := e.Store.GetMetadata(ctx, store.MetaSplitMultiplier)
	if err != nil {
		return 0, err
	}
	if !ok || raw == "" {
		return store.BasisPoints, nil
	}
	m, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return store.BasisPoints, nil
	}
	return m.Int64(), nil
}

// Current produces the snapshot from the cached Balance table (spec §4.5,
// "Current snapshot").
func (e *Engine) Current(ctx context.Context, limit int) (*Snapshot, error) {
	balances, err := e.Store.GetAllBalances(ctx, 0) // need the full set for totals
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	multiplierBP, err := e.splitMultiplier(ctx)
	if err != nil {
		return nil, fmt.Errorf("load split multiplier: %w", err)
	}
	block, err := e.Store.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest block: %w", err)
	}

	raws := make([]*big.Int, len(balances))
	total := new(big.Int)
	for i, b := range balances {
		n, ok := new(big.Int).SetString(b.Balance, 10)
		if !ok {
			n = new(big.Int)
		}
		raws[i] = n
		total.Add(total, n)
	}

	snap := buildSnapshot(balances, raws, total, multiplierBP, e.Decimals, block)
	if limit > 0 && limit < len(snap.Entries) {
		snap.Entries = snap.Entries[:limit]
	}
	return snap, nil
}

// Historical reconstructs the snapshot at block H by replaying Transfer
// events 0..H and locating the prevailing split multiplier (spec §4.5.1).
func (e *Engine) Historical(ctx context.Context, h uint64) (*Snapshot, error) {
	events, err := e.Store.GetEventsByBlockRange(ctx, 0, h)
	if err != nil {
		return nil, fmt.Errorf("load events up to block %d: %w", h, err)
	}

	balances := map[string]*big.Int{}
	order := func(addr string) *big.Int {
		if _, ok := balances[addr]; !ok {
			balances[addr] = new(big.Int)
		}
		return balances[addr]
	}

	var multiplierBP int64 = store.BasisPoints
	for _, ev := range events {
		switch ev.EventType {
		case store.EventTransfer:
			v, ok := new(big.Int).SetString(valueOr(ev.Amount, "0"), 10)
			if !ok {
				v = new(big.Int)
			}
			fromZero := isZeroOrEmpty(ev.FromAddress)
			toZero := isZeroOrEmpty(ev.ToAddress)
			switch {
			case fromZero && !toZero:
				order(*ev.ToAddress).Add(order(*ev.ToAddress), v)
			case toZero && !fromZero:
				order(*ev.FromAddress).Sub(order(*ev.FromAddress), v)
			case !fromZero && !toZero:
				order(*ev.FromAddress).Sub(order(*ev.FromAddress), v)
				order(*ev.ToAddress).Add(order(*ev.ToAddress), v)
			}
		case store.EventStockSplit:
			// The decoder stores the multipliers as decimal strings;
			// json.Number accepts both that and a bare JSON number.
			var payload struct {
				NewCumulativeMultiplier json.Number `json:"newCumulativeMultiplier"`
			}
			if err := decodeJSON(ev.Data, &payload); err == nil {
				if m, err := payload.NewCumulativeMultiplier.Int64(); err == nil && m > 0 {
					multiplierBP = m
				}
			}
		}
	}

	type row struct {
		addr string
		bal  *big.Int
	}
	var rows []row
	for addr, bal := range balances {
		if bal.Sign() > 0 {
			rows = append(rows, row{addr, bal})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		c := rows[i].bal.Cmp(rows[j].bal)
		if c != 0 {
			return c > 0
		}
		return rows[i].addr < rows[j].addr
	})

	total := new(big.Int)
	for _, r := range rows {
		total.Add(total, r.bal)
	}

	bals := make([]store.Balance, len(rows))
	raws := make([]*big.Int, len(rows))
	for i, r := range rows {
		bals[i] = store.Balance{Address: r.addr, Balance: r.bal.String(), LastUpdatedBlock: h}
		raws[i] = r.bal
	}

	return buildSnapshot(bals, raws, total, multiplierBP, e.Decimals, h), nil
}

func buildSnapshot(balances []store.Balance, raws []*big.Int, total *big.Int, multiplierBP int64, decimals uint8, block uint64) *Snapshot {
	entries := make([]Entry, len(balances))
	totalF := new(big.Float).SetInt(total)
	for i, b := range balances {
		pct := 0.0
		if total.Sign() > 0 {
			rawF := new(big.Float).SetInt(raws[i])
			ratio := new(big.Float).Quo(rawF, totalF)
			pct, _ = new(big.Float).Mul(ratio, big.NewFloat(100)).Float64()
		}
		entries[i] = Entry{
			Address:             b.Address,
			RawBalance:          raws[i].String(),
			BalanceFormatted:    formatUnits(raws[i], decimals),
			OwnershipPercentage: pct,
			LastUpdatedBlock:    b.LastUpdatedBlock,
		}
	}
	return &Snapshot{
		TotalSupply:          total.String(),
		TotalSupplyFormatted: formatUnits(total, decimals),
		SplitMultiplier:      float64(multiplierBP) / float64(store.BasisPoints),
		HolderCount:          len(entries),
		Entries:              entries,
		BlockNumber:          block,
	}
}

// formatUnits renders v (an integer in the smallest unit) as a decimal string
// with `decimals` fractional digits, trimming trailing zeros the way
// ethers.js-style formatUnits helpers do.
func formatUnits(v *big.Int, decimals uint8) string {
	if decimals == 0 {
		return v.String()
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int)
	frac := new(big.Int)
	whole.DivMod(abs, div, frac)

	fracStr := frac.String()
	for len(fracStr) < int(decimals) {
		fracStr = "0" + fracStr
	}
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}

	out := whole.String()
	if fracStr != "" {
		out += "." + fracStr
	}
	if neg {
		out = "-" + out
	}
	return out
}

func valueOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
