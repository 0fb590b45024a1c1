package decoder

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"chainequity/internal/chainclient"
	"chainequity/internal/store"
)

func bigFromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

const testABI = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"WalletApproved","anonymous":false,"inputs":[
		{"name":"wallet","type":"address","indexed":true}
	]},
	{"type":"event","name":"StockSplit","anonymous":false,"inputs":[
		{"name":"multiplier","type":"uint256","indexed":false},
		{"name":"newCumulativeMultiplier","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"SymbolChanged","anonymous":false,"inputs":[
		{"name":"oldSymbol","type":"string","indexed":false},
		{"name":"newSymbol","type":"string","indexed":false}
	]}
]`

func mustABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)
	return &parsed
}

func topicHash(contractABI *abi.ABI, name string) string {
	return contractABI.Events[name].ID.Hex()
}

func addressTopic(addr string) string {
	return common.HexToHash(addr).Hex()
}

func TestDecodeTransfer(t *testing.T) {
	contractABI := mustABI(t)
	from := "0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	to := "0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	data, err := contractABI.Events["Transfer"].Inputs.NonIndexed().Pack(bigFromString("1000"))
	require.NoError(t, err)

	log := chainclient.RawLog{
		Topics: []string{topicHash(contractABI, "Transfer"), from, to},
		Data:   data,
	}
	dec, err := Decode(contractABI, log)
	require.NoError(t, err)
	require.NotNil(t, dec)
	require.Equal(t, store.EventTransfer, dec.Type)
	require.Equal(t, "1000", *dec.Amount)
}

func TestDecodeWalletApproved(t *testing.T) {
	contractABI := mustABI(t)
	wallet := "0x000000000000000000000000cccccccccccccccccccccccccccccccccccccc"
	log := chainclient.RawLog{
		Topics: []string{topicHash(contractABI, "WalletApproved"), wallet},
	}
	dec, err := Decode(contractABI, log)
	require.NoError(t, err)
	require.NotNil(t, dec)
	require.Equal(t, store.EventWalletApproved, dec.Type)
}

func TestDecodeUnknownTopicIsIgnoredNotError(t *testing.T) {
	contractABI := mustABI(t)
	log := chainclient.RawLog{
		Topics: []string{addressTopic("0x00000000000000000000000000000000000000")},
	}
	dec, err := Decode(contractABI, log)
	require.NoError(t, err)
	require.Nil(t, dec)
}

func TestDecodeNoTopicsIsIgnored(t *testing.T) {
	contractABI := mustABI(t)
	dec, err := Decode(contractABI, chainclient.RawLog{})
	require.NoError(t, err)
	require.Nil(t, dec)
}
