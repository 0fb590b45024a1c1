// Package indexer runs the long-lived ingestion loop (spec §4.4): maintain a
// subscription, debounce head notifications, poll as a safety net, pull log
// ranges, decode, and apply them to the Store in a single transaction per
// batch. Grounded on tablelandnetwork-go-tableland's eventfeed.Start head
// loop, adapted from its channel-of-BlockEvents shape to a debounced
// single-pass-per-window design, and on the teacher's
// core/blockchain_synchronization.go mutex-guarded state-machine style.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"chainequity/internal/apperr"
	"chainequity/internal/chainclient"
	"chainequity/internal/decoder"
	"chainequity/internal/store"
)

// State names the Indexer's position in the state machine of spec §4.4.
type State string

const (
	StateStarting     State = "STARTING"
	StateRunning      State = "RUNNING"
	StateSyncing      State = "SYNCING"
	StateReconnecting State = "RECONNECTING"
	StateStopped      State = "STOPPED"
)

const (
	debounceInterval     = 400 * time.Millisecond
	safetyNetPollInterval = 3 * time.Second

	reconnectBase         = 1 * time.Second
	reconnectCap          = 8 * time.Second
	maxReconnectAttempts  = 10
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Indexer owns the single writer path into Store; all other readers treat
// Store as read-only (spec §4.1).
type Indexer struct {
	chain       chainclient.Client
	store       *store.Store
	contractABI *abi.ABI
	log         *logrus.Entry

	mu                 sync.Mutex
	state              State
	lastProcessedBlock uint64
}

// New constructs an Indexer bound to chain and st.
func New(chain chainclient.Client, st *store.Store, contractABI *abi.ABI) *Indexer {
	return &Indexer{
		chain:       chain,
		store:       st,
		contractABI: contractABI,
		log:         logrus.WithField("component", "indexer"),
		state:       StateStopped,
	}
}

// State reports the current state machine position.
func (ix *Indexer) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

func (ix *Indexer) setState(s State) {
	ix.mu.Lock()
	ix.state = s
	ix.mu.Unlock()
	ix.log.WithField("state", string(s)).Debug("state transition")
}

// Run drives the STARTING → RUNNING ⇄ SYNCING loop with RECONNECTING/backoff
// on transport failure, until ctx is cancelled or reconnect attempts are
// exhausted (spec §4.4.4). A nil return means clean shutdown; a non-nil
// return means the process should exit non-zero (fatal, per §7).
func (ix *Indexer) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := ix.runOnce(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			ix.setState(StateStopped)
			return nil
		}
		if err == nil {
			continue
		}
		if apperr.KindOf(err) == apperr.KindFatal {
			ix.setState(StateStopped)
			return err
		}

		ix.setState(StateReconnecting)
		attempt++
		if attempt > maxReconnectAttempts {
			ix.setState(StateStopped)
			return fmt.Errorf("reconnect attempts exhausted after %d tries: %w", attempt-1, err)
		}
		backoff := reconnectBase * time.Duration(1<<uint(attempt-1))
		if backoff > reconnectCap {
			backoff = reconnectCap
		}
		ix.log.WithError(err).WithField("attempt", attempt).WithField("backoff", backoff).Warn("reconnecting after backoff")
		select {
		case <-ctx.Done():
			ix.setState(StateStopped)
			return nil
		case <-time.After(backoff):
		}
	}
}

// runOnce performs one STARTING→RUNNING cycle: open a subscription, perform
// a catch-up sync, then feed the debouncer until the subscription dies or
// ctx is cancelled. onConnected fires once the subscription is established,
// letting Run reset its backoff attempt counter (spec §4.4.4: "on success,
// reset attempt=0").
func (ix *Indexer) runOnce(ctx context.Context, onConnected func()) error {
	ix.setState(StateStarting)

	lastSyncedStr, _, err := ix.store.GetMetadata(ctx, store.MetaLastSyncedBlock)
	if err != nil {
		return fmt.Errorf("read last_synced_block: %w", err)
	}
	lastSynced, _ := strconv.ParseUint(lastSyncedStr, 10, 64)
	ix.mu.Lock()
	ix.lastProcessedBlock = lastSynced
	ix.mu.Unlock()

	heads, err := ix.chain.SubscribeNewHeads(ctx)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	onConnected()

	head, err := ix.chain.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read chain head: %w", err)
	}
	ix.setState(StateSyncing)
	if err := ix.syncRange(ctx, lastSynced+1, head); err != nil {
		if apperr.KindOf(err) == apperr.KindFatal {
			return err
		}
		ix.log.WithError(err).Warn("catch-up sync failed, will retry on next head")
	}
	ix.setState(StateRunning)

	pollTicker := time.NewTicker(safetyNetPollInterval)
	defer pollTicker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	var pendingHead uint64

	armDebounce := func(h uint64) {
		if h > pendingHead {
			pendingHead = h
		}
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(debounceInterval)
		} else {
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(debounceInterval)
		}
		debounceCh = debounceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case h, ok := <-heads:
			if !ok {
				return fmt.Errorf("head subscription closed")
			}
			armDebounce(h)
		case <-pollTicker.C:
			head, err := ix.chain.BlockNumber(ctx)
			if err != nil {
				ix.log.WithError(err).Warn("safety-net poll failed")
				continue
			}
			ix.mu.Lock()
			lastProcessed := ix.lastProcessedBlock
			ix.mu.Unlock()
			if head > lastProcessed {
				armDebounce(head)
			}
		case <-debounceCh:
			debounceCh = nil
			ix.setState(StateSyncing)
			ix.mu.Lock()
			from := ix.lastProcessedBlock + 1
			ix.mu.Unlock()
			if err := ix.syncRange(ctx, from, pendingHead); err != nil {
				if apperr.KindOf(err) == apperr.KindFatal {
					return err
				}
				ix.log.WithError(err).Warn("sync pass failed, will retry on next head")
			}
			ix.setState(StateRunning)
		}
	}
}

// Rewind clears the persisted sync cursor back to block, the manual
// re-index operation (spec §9): because event application is idempotent on
// (tx_hash, log_index), the next sync pass safely replays from block+1.
func (ix *Indexer) Rewind(ctx context.Context, block uint64) error {
	if err := ix.store.SetMetadata(ctx, store.MetaLastSyncedBlock, strconv.FormatUint(block, 10)); err != nil {
		return fmt.Errorf("rewind last_synced_block to %d: %w", block, err)
	}
	ix.mu.Lock()
	ix.lastProcessedBlock = block
	ix.mu.Unlock()
	return nil
}

// syncRange implements the sync pass of spec §4.4.1.
func (ix *Indexer) syncRange(ctx context.Context, from, to uint64) error {
	if from > to {
		return nil
	}
	logs, err := ix.chain.QueryLogs(ctx, from, to)
	if err != nil {
		return fmt.Errorf("query logs [%d,%d]: %w", from, to, err)
	}

	sortLogs(logs)

	blockTimes := map[uint64]uint64{}
	var applyErr error
	err = ix.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		for _, rl := range logs {
			if err := ix.applyLog(ctx, tx, rl, blockTimes); err != nil {
				applyErr = err
				return err
			}
		}
		return tx.SetMetadata(ctx, store.MetaLastSyncedBlock, strconv.FormatUint(to, 10))
	})
	if err != nil {
		// A failure while applying a log (decode, RPC, or a write that the
		// rollback undoes) leaves last_synced_block untouched, so the next
		// pass can safely retry it. Any other Store failure violates the
		// last_synced_block/persisted-events invariant and is fatal
		// (spec §4.4.4, §7).
		if applyErr != nil {
			return apperr.Transient(fmt.Sprintf("apply sync batch [%d,%d]", from, to), applyErr)
		}
		return apperr.Fatal(fmt.Sprintf("commit sync batch [%d,%d]", from, to), err)
	}

	ix.mu.Lock()
	ix.lastProcessedBlock = to
	ix.mu.Unlock()
	return nil
}

func sortLogs(logs []chainclient.RawLog) {
	for i := 1; i < len(logs); i++ {
		for j := i; j > 0; j-- {
			a, b := logs[j-1], logs[j]
			if a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.Index <= b.Index) {
				break
			}
			logs[j-1], logs[j] = logs[j], logs[j-1]
		}
	}
}

func (ix *Indexer) blockTimestamp(ctx context.Context, cache map[uint64]uint64, block uint64) (uint64, error) {
	if ts, ok := cache[block]; ok {
		return ts, nil
	}
	info, err := ix.chain.GetBlock(ctx, block)
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", block, err)
	}
	cache[block] = info.Timestamp
	return info.Timestamp, nil
}

// applyLog decodes one raw log and applies it per spec §4.4.3.
func (ix *Indexer) applyLog(ctx context.Context, tx *store.Tx, rl chainclient.RawLog, blockTimes map[uint64]uint64) error {
	dec, err := decoder.Decode(ix.contractABI, rl)
	if err != nil {
		return fmt.Errorf("decode log %s:%d: %w", rl.TxHash, rl.Index, err)
	}
	if dec == nil {
		return nil // unrecognized topic: ignored, not an error
	}

	ts, err := ix.blockTimestamp(ctx, blockTimes, rl.BlockNumber)
	if err != nil {
		return err
	}

	receipt, err := ix.chain.GetTransactionReceipt(ctx, rl.TxHash)
	if err != nil {
		return fmt.Errorf("receipt %s: %w", rl.TxHash, err)
	}
	var gasUsed, gasPrice *string
	if receipt != nil {
		gu := strconv.FormatUint(receipt.GasUsed, 10)
		gasUsed = &gu
		gp := receipt.GasPrice
		gasPrice = &gp
	}

	ev := store.Event{
		BlockNumber:     rl.BlockNumber,
		TransactionHash: rl.TxHash,
		LogIndex:        uint64(rl.Index),
		EventType:       dec.Type,
		FromAddress:     dec.From,
		ToAddress:       dec.To,
		Amount:          dec.Amount,
		Data:            dec.Data,
		GasUsed:         gasUsed,
		GasPrice:        gasPrice,
		Timestamp:       ts,
	}
	if err := tx.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event %s:%d: %w", rl.TxHash, rl.Index, err)
	}

	switch dec.Type {
	case store.EventTransfer:
		return ix.applyTransferBalances(ctx, tx, rl.BlockNumber, ts, dec)
	case store.EventStockSplit:
		return ix.applyStockSplit(ctx, tx, rl, ts, dec)
	case store.EventSymbolChanged:
		return ix.applyRename(ctx, tx, rl, ts, store.ActionSymbolChange, store.MetaTokenSymbol, dec, "oldSymbol", "newSymbol")
	case store.EventNameChanged:
		return ix.applyRename(ctx, tx, rl, ts, store.ActionNameChange, store.MetaTokenName, dec, "oldName", "newName")
	default:
		// WalletApproved, WalletRevoked, TransferBlocked: event only.
		return nil
	}
}

func (ix *Indexer) applyTransferBalances(ctx context.Context, tx *store.Tx, block, ts uint64, dec *decoder.Decoded) error {
	for _, addrPtr := range []*string{dec.From, dec.To} {
		if addrPtr == nil || *addrPtr == zeroAddress {
			continue // zero-address side of a mint/burn is skipped, the event itself is still persisted
		}
		raw, err := ix.rawBalanceOf(ctx, *addrPtr)
		if err != nil {
			return err
		}
		if err := tx.UpsertBalance(ctx, *addrPtr, raw, block, ts); err != nil {
			return fmt.Errorf("upsert balance %s: %w", *addrPtr, err)
		}
	}
	return nil
}

// rawBalanceOf reads the on-chain balance and current split multiplier and
// converts to the pre-multiplier raw unit the Store persists (spec §4.4.3):
// rawBalance = onChainBalance * BASIS_POINTS / splitMultiplier.
func (ix *Indexer) rawBalanceOf(ctx context.Context, addr string) (string, error) {
	out, err := ix.chain.CallView(ctx, "balanceOf", common.HexToAddress(addr))
	if err != nil {
		return "", fmt.Errorf("call balanceOf(%s): %w", addr, err)
	}
	balVals, err := ix.contractABI.Unpack("balanceOf", out)
	if err != nil || len(balVals) == 0 {
		return "", fmt.Errorf("unpack balanceOf(%s): %w", addr, err)
	}
	onChain, ok := balVals[0].(*big.Int)
	if !ok {
		return "", fmt.Errorf("unexpected balanceOf(%s) return type", addr)
	}

	multOut, err := ix.chain.CallView(ctx, "splitMultiplier")
	if err != nil {
		return "", fmt.Errorf("call splitMultiplier: %w", err)
	}
	multVals, err := ix.contractABI.Unpack("splitMultiplier", multOut)
	if err != nil || len(multVals) == 0 {
		return "", fmt.Errorf("unpack splitMultiplier: %w", err)
	}
	multiplier, ok := multVals[0].(*big.Int)
	if !ok || multiplier.Sign() == 0 {
		multiplier = big.NewInt(store.BasisPoints)
	}

	raw := new(big.Int).Mul(onChain, big.NewInt(store.BasisPoints))
	raw.Quo(raw, multiplier)
	return raw.String(), nil
}

func (ix *Indexer) applyStockSplit(ctx context.Context, tx *store.Tx, rl chainclient.RawLog, ts uint64, dec *decoder.Decoded) error {
	var payload struct {
		Multiplier              string `json:"multiplier"`
		NewCumulativeMultiplier string `json:"newCumulativeMultiplier"`
	}
	if err := json.Unmarshal([]byte(dec.Data), &payload); err != nil {
		return fmt.Errorf("decode stock split payload: %w", err)
	}

	action := store.CorporateAction{
		ActionType:      store.ActionStockSplit,
		BlockNumber:     rl.BlockNumber,
		TransactionHash: rl.TxHash,
		OldValue:        payload.Multiplier, // the per-split multiplier itself (spec §3), not the prior cumulative value
		NewValue:        payload.NewCumulativeMultiplier,
		Timestamp:       ts,
	}
	if err := tx.InsertCorporateAction(ctx, action); err != nil {
		return fmt.Errorf("insert stock split action: %w", err)
	}
	// Balance rows are NOT rewritten on a split; stored balances stay in
	// pre-multiplier units and the multiplier alone changes (spec §4.4.3).
	return tx.SetMetadata(ctx, store.MetaSplitMultiplier, payload.NewCumulativeMultiplier)
}

func (ix *Indexer) applyRename(ctx context.Context, tx *store.Tx, rl chainclient.RawLog, ts uint64, actionType store.ActionType, metaKey string, dec *decoder.Decoded, oldKey, newKey string) error {
	var payload map[string]string
	if err := json.Unmarshal([]byte(dec.Data), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", actionType, err)
	}
	action := store.CorporateAction{
		ActionType:      actionType,
		BlockNumber:     rl.BlockNumber,
		TransactionHash: rl.TxHash,
		OldValue:        payload[oldKey],
		NewValue:        payload[newKey],
		Timestamp:       ts,
	}
	if err := tx.InsertCorporateAction(ctx, action); err != nil {
		return fmt.Errorf("insert %s action: %w", actionType, err)
	}
	return tx.SetMetadata(ctx, metaKey, payload[newKey])
}
