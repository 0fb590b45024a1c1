package captable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chainequity/internal/store"
)

// fakeReader is an in-memory Reader, following the teacher's
// cmd/explorer mock-service pattern of substituting a fake for the concrete
// store in unit tests.
type fakeReader struct {
	balances []store.Balance
	metadata map[string]string
	events   []store.Event
}

func (f *fakeReader) GetAllBalances(ctx context.Context, limit int) ([]store.Balance, error) {
	if limit > 0 && limit < len(f.balances) {
		return f.balances[:limit], nil
	}
	return f.balances, nil
}

func (f *fakeReader) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.metadata[key]
	return v, ok, nil
}

func (f *fakeReader) GetEventsByBlockRange(ctx context.Context, from, to uint64) ([]store.Event, error) {
	var out []store.Event
	for _, e := range f.events {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReader) GetEventsByAddress(ctx context.Context, addr string, limit int) ([]store.Event, error) {
	var out []store.Event
	for i := len(f.events) - 1; i >= 0; i-- {
		e := f.events[i]
		if (e.FromAddress != nil && *e.FromAddress == addr) || (e.ToAddress != nil && *e.ToAddress == addr) {
			out = append(out, e)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var max uint64
	for _, e := range f.events {
		if e.BlockNumber > max {
			max = e.BlockNumber
		}
	}
	return max, nil
}

func strPtr(s string) *string { return &s }

func TestCurrentSnapshotOwnershipPercentages(t *testing.T) {
	reader := &fakeReader{
		balances: []store.Balance{
			{Address: "0xaaa", Balance: "750", LastUpdatedBlock: 5},
			{Address: "0xbbb", Balance: "250", LastUpdatedBlock: 5},
		},
		metadata: map[string]string{},
	}
	engine := New(reader, 0)
	snap, err := engine.Current(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "1000", snap.TotalSupply)
	require.Equal(t, 2, snap.HolderCount)
	require.InDelta(t, 75.0, snap.Entries[0].OwnershipPercentage, 0.0001)
	require.InDelta(t, 25.0, snap.Entries[1].OwnershipPercentage, 0.0001)
	require.Equal(t, 1.0, snap.SplitMultiplier) // no split metadata: default 1x
}

func TestCurrentSnapshotLimitTruncatesButKeepsTotals(t *testing.T) {
	reader := &fakeReader{
		balances: []store.Balance{
			{Address: "0xaaa", Balance: "900"},
			{Address: "0xbbb", Balance: "100"},
		},
	}
	engine := New(reader, 0)
	snap, err := engine.Current(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	require.Equal(t, 2, snap.HolderCount)  // holder count reflects the full set
	require.Equal(t, "1000", snap.TotalSupply) // total reflects the full set too
}

func TestHistoricalReplaysMintTransferAndSplit(t *testing.T) {
	reader := &fakeReader{
		events: []store.Event{
			{BlockNumber: 1, EventType: store.EventTransfer, ToAddress: strPtr("0xaaa"), Amount: strPtr("1000")},
			{BlockNumber: 2, EventType: store.EventTransfer, FromAddress: strPtr("0xaaa"), ToAddress: strPtr("0xbbb"), Amount: strPtr("400")},
			{BlockNumber: 3, EventType: store.EventStockSplit, Data: `{"multiplier":20000,"newCumulativeMultiplier":20000}`},
		},
	}
	engine := New(reader, 0)

	snap, err := engine.Historical(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "1000", snap.TotalSupply)
	require.Equal(t, 1.0, snap.SplitMultiplier)

	snap, err = engine.Historical(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 2.0, snap.SplitMultiplier) // split changes the multiplier, not the stored raw balances
	require.Equal(t, "1000", snap.TotalSupply)
}

func TestBalanceHistoryClassifiesMintAndTransfers(t *testing.T) {
	reader := &fakeReader{
		events: []store.Event{
			{BlockNumber: 1, TransactionHash: "0x1", EventType: store.EventTransfer, ToAddress: strPtr("0xaaa"), Amount: strPtr("1000")},
			{BlockNumber: 2, TransactionHash: "0x2", EventType: store.EventTransfer, FromAddress: strPtr("0xaaa"), ToAddress: strPtr("0xbbb"), Amount: strPtr("300")},
		},
	}
	engine := New(reader, 0)
	history, err := engine.BalanceHistory(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, classMint, history[0].Classification)
	require.Equal(t, "1000", history[0].CumulativeBalance)
	require.Equal(t, classTransferSent, history[1].Classification)
	require.Equal(t, "700", history[1].CumulativeBalance)
}
