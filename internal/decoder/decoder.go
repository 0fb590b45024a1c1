// Package decoder maps raw logs to typed domain events using the known
// event signatures (spec §4.3). Decode is a pure function: no I/O, no Store
// access. Grounded on the parseEvent step of
// tablelandnetwork-go-tableland's eventfeed/impl/eventfeed.go, adapted from
// its generic reflect-based unpacking to the seven fixed event shapes this
// system recognizes.
package decoder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainequity/internal/chainclient"
	"chainequity/internal/store"
)

// Decoded is the typed result of decoding one RawLog.
type Decoded struct {
	Type   store.EventType
	From   *string
	To     *string
	Amount *string
	Data   string // JSON payload of decoded args, for Event.Data
}

// Decode maps log to a Decoded event using contractABI. Unknown topics (any
// event the ABI doesn't recognize) yield (nil, nil) — ignored, not an error.
func Decode(contractABI *abi.ABI, log chainclient.RawLog) (*Decoded, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	eventDescr, err := contractABI.EventByID(common.HexToHash(log.Topics[0]))
	if err != nil {
		return nil, nil // unrecognized topic: not an error, just ignored
	}

	switch store.EventType(eventDescr.Name) {
	case store.EventTransfer:
		return decodeTransferLike(contractABI, eventDescr, log, store.EventTransfer)
	case store.EventTransferBlocked:
		return decodeTransferLike(contractABI, eventDescr, log, store.EventTransferBlocked)
	case store.EventWalletApproved:
		return decodeWalletEvent(log, store.EventWalletApproved)
	case store.EventWalletRevoked:
		return decodeWalletEvent(log, store.EventWalletRevoked)
	case store.EventStockSplit:
		return decodeStockSplit(contractABI, eventDescr, log)
	case store.EventSymbolChanged:
		return decodeRenamed(contractABI, eventDescr, log, store.EventSymbolChanged, "oldSymbol", "newSymbol")
	case store.EventNameChanged:
		return decodeRenamed(contractABI, eventDescr, log, store.EventNameChanged, "oldName", "newName")
	default:
		return nil, nil
	}
}

func unpackNonIndexed(contractABI *abi.ABI, name string, data []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(data) == 0 {
		return out, nil
	}
	if err := contractABI.UnpackIntoMap(out, name, data); err != nil {
		return nil, fmt.Errorf("unpack %s data: %w", name, err)
	}
	return out, nil
}

func indexedAddress(log chainclient.RawLog, topicIndex int) (string, error) {
	if topicIndex >= len(log.Topics) {
		return "", fmt.Errorf("missing indexed topic %d", topicIndex)
	}
	return strings.ToLower(common.HexToAddress(log.Topics[topicIndex]).Hex()), nil
}

func decodeTransferLike(contractABI *abi.ABI, ev abi.Event, log chainclient.RawLog, typ store.EventType) (*Decoded, error) {
	from, err := indexedAddress(log, 1)
	if err != nil {
		return nil, err
	}
	to, err := indexedAddress(log, 2)
	if err != nil {
		return nil, err
	}
	fields, err := unpackNonIndexed(contractABI, ev.Name, log.Data)
	if err != nil {
		return nil, err
	}
	amount := bigToString(fields["value"])
	if amount == "" {
		amount = bigToString(fields["amount"])
	}
	payload, err := json.Marshal(map[string]interface{}{"from": from, "to": to, "amount": amount})
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: typ, From: &from, To: &to, Amount: &amount, Data: string(payload)}, nil
}

func decodeWalletEvent(log chainclient.RawLog, typ store.EventType) (*Decoded, error) {
	wallet, err := indexedAddress(log, 1)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]interface{}{"wallet": wallet})
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: typ, From: &wallet, Data: string(payload)}, nil
}

func decodeStockSplit(contractABI *abi.ABI, ev abi.Event, log chainclient.RawLog) (*Decoded, error) {
	fields, err := unpackNonIndexed(contractABI, ev.Name, log.Data)
	if err != nil {
		return nil, err
	}
	multiplier := bigToString(fields["multiplier"])
	newCumulative := bigToString(fields["newCumulativeMultiplier"])
	payload, err := json.Marshal(map[string]interface{}{
		"multiplier":              multiplier,
		"newCumulativeMultiplier": newCumulative,
	})
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: store.EventStockSplit, Data: string(payload)}, nil
}

func decodeRenamed(contractABI *abi.ABI, ev abi.Event, log chainclient.RawLog, typ store.EventType, oldKey, newKey string) (*Decoded, error) {
	fields, err := unpackNonIndexed(contractABI, ev.Name, log.Data)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]interface{}{
		oldKey: fmt.Sprintf("%v", fields[oldKey]),
		newKey: fmt.Sprintf("%v", fields[newKey]),
	})
	if err != nil {
		return nil, err
	}
	return &Decoded{Type: typ, Data: string(payload)}, nil
}

func bigToString(v interface{}) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
