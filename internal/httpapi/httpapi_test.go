package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chainequity/internal/captable"
	"chainequity/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "httpapi_test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine := captable.New(st, 18)
	s := NewServer("127.0.0.1:0", st, engine, "")
	return s, st
}

func seedHolder(t *testing.T, st *store.Store, addr, balance string, block uint64) {
	t.Helper()
	require.NoError(t, st.UpsertBalance(context.Background(), addr, balance, block, 1_700_000_000))
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestCaptableReturnsHoldersSortedByBalance(t *testing.T) {
	s, st := newTestServer(t)
	seedHolder(t, st, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "100", 1)
	seedHolder(t, st, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "900", 1)

	rr := doRequest(s, http.MethodGet, "/api/captable")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 2)
	require.Equal(t, "1000", body["totalSupply"])
}

func TestCaptableInvalidBlockIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable?block=notanumber")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCaptableByBlockRoute(t *testing.T) {
	s, st := newTestServer(t)
	seedHolder(t, st, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "500", 1)

	rr := doRequest(s, http.MethodGet, "/api/captable/block/1")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCaptableByBlockNegativeHeightIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/block/-1")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Contains(t, body["message"], "invalid")
}

func TestCaptableByBlockMalformedHeightIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/block/not-a-number")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTopRejectsNonPositiveN(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/top/0")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(s, http.MethodGet, "/api/captable/top/-1")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHolderNotFoundReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/holder/0xcccccccccccccccccccccccccccccccccccccccc")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHolderInvalidAddressReturns400(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/holder/not-an-address")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyticsEventsLimitFallsBackOnMalformedInput(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/analytics/events?limit=abc")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCaptableExportCSV(t *testing.T) {
	s, st := newTestServer(t)
	seedHolder(t, st, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "1000", 1)

	rr := doRequest(s, http.MethodGet, "/api/captable/export?format=csv")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	require.Contains(t, rr.Body.String(), "Address,Balance,Ownership %,Last Updated")
}

func TestCaptableExportInvalidFormat(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/captable/export?format=xml")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownRouteReturns404WithBody(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doRequest(s, http.MethodGet, "/api/nonexistent")
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, float64(http.StatusNotFound), body["statusCode"])
}
