package chainclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// QueryLogs, CallView, and the subscribe/poll paths all dial a live
// ethclient.Client and have no unit tests; internal/indexer's tests replace
// the whole Client with a fake. RequireLocalEndpoint is the one piece of pure
// logic in this package and is unit-tested directly here.

func TestRequireLocalEndpointAcceptsLoopback(t *testing.T) {
	cases := []string{
		"ws://localhost:8545",
		"http://127.0.0.1:8545",
		"ws://[::1]:8545",
		"http://host.docker.internal:8545",
	}
	for _, rawURL := range cases {
		require.NoError(t, RequireLocalEndpoint(rawURL), rawURL)
	}
}

func TestRequireLocalEndpointRejectsRemoteHost(t *testing.T) {
	err := RequireLocalEndpoint("wss://mainnet.infura.io/ws/v3/abc123")
	require.Error(t, err)
}

func TestRequireLocalEndpointRejectsMalformedURL(t *testing.T) {
	err := RequireLocalEndpoint("://not-a-url")
	require.Error(t, err)
}
