package store

// EventType enumerates the seven recognized on-chain event kinds (spec §3).
type EventType string

const (
	EventTransfer        EventType = "Transfer"
	EventWalletApproved  EventType = "WalletApproved"
	EventWalletRevoked   EventType = "WalletRevoked"
	EventStockSplit      EventType = "StockSplit"
	EventSymbolChanged   EventType = "SymbolChanged"
	EventNameChanged     EventType = "NameChanged"
	EventTransferBlocked EventType = "TransferBlocked"
)

// ActionType enumerates the corporate-action kinds (spec §3).
type ActionType string

const (
	ActionStockSplit   ActionType = "StockSplit"
	ActionSymbolChange ActionType = "SymbolChange"
	ActionNameChange   ActionType = "NameChange"
)

// Recognized Metadata keys (spec §3).
const (
	MetaLastSyncedBlock = "last_synced_block"
	MetaSplitMultiplier = "split_multiplier"
	MetaTokenSymbol     = "token_symbol"
	MetaTokenName       = "token_name"
)

// BasisPoints is the fixed-point denominator for split multipliers.
const BasisPoints = 10_000

// Event is an observed on-chain log attributable to the tracked contract.
type Event struct {
	ID              int64     `json:"id"`
	BlockNumber     uint64    `json:"blockNumber"`
	TransactionHash string    `json:"transactionHash"`
	LogIndex        uint64    `json:"logIndex"`
	EventType       EventType `json:"eventType"`
	FromAddress     *string   `json:"fromAddress,omitempty"`
	ToAddress       *string   `json:"toAddress,omitempty"`
	Amount          *string   `json:"amount,omitempty"`
	Data            string    `json:"data,omitempty"`
	GasUsed         *string   `json:"gasUsed,omitempty"`
	GasPrice        *string   `json:"gasPrice,omitempty"`
	Timestamp       uint64    `json:"timestamp"`
}

// Balance is the cached current balance for a holder, stored in raw
// (pre-split-multiplier) units.
type Balance struct {
	Address              string `json:"address"`
	Balance              string `json:"balance"`
	LastUpdatedBlock     uint64 `json:"lastUpdatedBlock"`
	LastUpdatedTimestamp uint64 `json:"lastUpdatedTimestamp"`
}

// CorporateAction is a durable record of a split, symbol change, or name
// change.
type CorporateAction struct {
	ID              int64      `json:"id"`
	ActionType      ActionType `json:"actionType"`
	BlockNumber     uint64     `json:"blockNumber"`
	TransactionHash string     `json:"transactionHash"`
	OldValue        string     `json:"oldValue"`
	NewValue        string     `json:"newValue"`
	Timestamp       uint64     `json:"timestamp"`
}
