package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestInsertEventIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	from := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	to := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	amount := "1000"
	ev := Event{
		BlockNumber:     10,
		TransactionHash: "0xdeadbeef",
		LogIndex:        0,
		EventType:       EventTransfer,
		FromAddress:     &from,
		ToAddress:       &to,
		Amount:          &amount,
		Timestamp:       100,
	}

	require.NoError(t, st.InsertEvent(ctx, ev))
	require.NoError(t, st.InsertEvent(ctx, ev)) // duplicate (tx_hash, log_index): no-op

	events, err := st.GetEventsByBlockRange(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventTransfer, events[0].EventType)
}

func TestUpsertBalanceOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	addr := "0xcccccccccccccccccccccccccccccccccccccccc"

	require.NoError(t, st.UpsertBalance(ctx, addr, "500", 1, 10))
	require.NoError(t, st.UpsertBalance(ctx, addr, "750", 2, 20))

	bal, ok, err := st.GetBalance(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "750", bal.Balance)
	require.Equal(t, uint64(2), bal.LastUpdatedBlock)
}

func TestGetAllBalancesOrdersByMagnitudeNotLexOnly(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// "99" should sort before the 21-digit balance despite a naive
	// lexicographic-only comparison putting "99" after "1000...".
	require.NoError(t, st.UpsertBalance(ctx, "0x1111111111111111111111111111111111111111", "99", 1, 1))
	require.NoError(t, st.UpsertBalance(ctx, "0x2222222222222222222222222222222222222222", "100000000000000000000", 1, 1))
	require.NoError(t, st.UpsertBalance(ctx, "0x3333333333333333333333333333333333333333", "0", 1, 1))

	bals, err := st.GetAllBalances(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bals, 2) // the zero balance is excluded
	require.Equal(t, "100000000000000000000", bals[0].Balance)
	require.Equal(t, "99", bals[1].Balance)
}

func TestMetadataRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetMetadata(ctx, MetaLastSyncedBlock)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetMetadata(ctx, MetaLastSyncedBlock, "42"))
	v, ok, err := st.GetMetadata(ctx, MetaLastSyncedBlock)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", v)
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	from := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	wantErr := require.Error
	err := st.RunInTransaction(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertEvent(ctx, Event{
			BlockNumber: 1, TransactionHash: "0xabc", LogIndex: 0,
			EventType: EventTransfer, FromAddress: &from,
		}))
		return context.Canceled
	})
	wantErr(t, err)

	events, qerr := st.GetEventsByBlockRange(ctx, 0, 10)
	require.NoError(t, qerr)
	require.Empty(t, events)
}

func TestLatestBlockNumberNoEvents(t *testing.T) {
	st := openTestStore(t)
	n, err := st.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}
