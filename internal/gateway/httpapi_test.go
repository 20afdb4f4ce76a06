package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/chargestream/internal/gateway/config"
	enginepkg "github.com/drblury/chargestream/internal/gateway/engine"
	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
)

// newAPIService wires a Service around two engines owning stations "A" and
// "B" and returns it without starting any servers.
func newAPIService(t *testing.T) *Service {
	t.Helper()
	svc := newChannelService(t)
	require.NoError(t, svc.Attach(newTestEngine("e1", "A")))
	require.NoError(t, svc.Attach(newTestEngine("e2", "B")))
	return svc
}

func getChargeBox(svc *Service, id string) *httptest.ResponseRecorder {
	// The raw token goes in via the path value only; ids with spaces or
	// control bytes are not even representable in a request line.
	req := httptest.NewRequest(http.MethodGet, "/chargeBoxes/box", nil)
	req.SetPathValue("chargeBoxId", id)
	w := httptest.NewRecorder()
	svc.handleChargeBox(w, req)
	return w
}

func TestHandleChargeBoxIDs(t *testing.T) {
	svc := newAPIService(t)

	w := httptest.NewRecorder()
	svc.handleChargeBoxIDs(w, httptest.NewRequest(http.MethodGet, "/chargeBoxIds", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var refs []map[string]string
	require.NoError(t, jsoncodec.Unmarshal(w.Body.Bytes(), &refs))
	require.Len(t, refs, 2)
	assert.Equal(t, "A", refs[0]["@id"])
	assert.Equal(t, "B", refs[1]["@id"])
}

func TestHandleChargeBoxes(t *testing.T) {
	svc := newAPIService(t)

	w := httptest.NewRecorder()
	svc.handleChargeBoxes(w, httptest.NewRequest(http.MethodGet, "/chargeBoxes", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var boxes []enginepkg.ChargeBox
	require.NoError(t, jsoncodec.Unmarshal(w.Body.Bytes(), &boxes))
	require.Len(t, boxes, 2)
	assert.Equal(t, "A", boxes[0].ID)
	assert.Equal(t, "TestCo", boxes[0].Vendor)
}

func TestHandleChargeBoxFound(t *testing.T) {
	svc := newAPIService(t)

	w := getChargeBox(svc, "A")
	require.Equal(t, http.StatusOK, w.Code)

	var box enginepkg.ChargeBox
	require.NoError(t, jsoncodec.Unmarshal(w.Body.Bytes(), &box))
	assert.Equal(t, "A", box.ID)

	w = getChargeBox(svc, "B")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleChargeBoxUnknown(t *testing.T) {
	svc := newAPIService(t)

	w := getChargeBox(svc, "C")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"description": "Unknown charge box identification!"}`, w.Body.String())
}

func TestHandleChargeBoxMalformed(t *testing.T) {
	svc := newAPIService(t)

	for _, id := range []string{"bad id", "a/b", "\x00", "café"} {
		w := getChargeBox(svc, id)
		require.Equal(t, http.StatusBadRequest, w.Code, "%q", id)
		assert.JSONEq(t, `{"description": "Invalid charge box identification!"}`, w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	svc := newAPIService(t)
	svc.log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))

	w := httptest.NewRecorder()
	svc.handleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var status statusReport
	require.NoError(t, jsoncodec.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.Engines)
	assert.Equal(t, 2, status.ChargeBoxes)
	assert.Equal(t, 1, status.RingRecords)
	assert.Equal(t, configpkg.DefaultRingCapacity, status.RingCapacity)
	assert.Equal(t, uint64(2), status.NextSequence)
	assert.Equal(t, "channel", status.Transport)
	assert.True(t, status.Capabilities.GuaranteedOrder)
	assert.Equal(t, "5s", status.RetryInterval)
}

func TestCORSHeaders(t *testing.T) {
	svc := newAPIService(t)
	svc.Conf.APICORSAllowedOrigins = []string{"https://ui.example.com"}

	req := httptest.NewRequest(http.MethodGet, "/chargeBoxes", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	svc.handleChargeBoxes(w, req)
	assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origin gets no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/chargeBoxes", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	svc.handleChargeBoxes(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	svc := newAPIService(t)
	svc.Conf.APICORSAllowedOrigins = []string{"*"}

	req := httptest.NewRequest(http.MethodOptions, "/chargeBoxes", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	svc.handleChargeBoxes(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterAPIHandlersSharesOnePort(t *testing.T) {
	svc := newAPIService(t)
	svc.registerAPIHandlers()

	svc.httpServersMu.Lock()
	defer svc.httpServersMu.Unlock()
	require.Len(t, svc.httpServers, 1)
	assert.NotNil(t, svc.httpServers[svc.Conf.APIPort])
}
