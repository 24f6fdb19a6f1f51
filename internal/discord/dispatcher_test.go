package discord

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// MockEnqueuer implementa Enqueuer per i test del dispatcher
type MockEnqueuer struct {
	requests   []analysis.AnalysisRequest
	enqueueErr error
	healthErr  error
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, req analysis.AnalysisRequest) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.requests = append(m.requests, req)
	return nil
}

func (m *MockEnqueuer) Healthy(ctx context.Context) error {
	return m.healthErr
}

// dispatcherFixture raggruppa il dispatcher con la chiave di firma
type dispatcherFixture struct {
	dispatcher *Dispatcher
	broker     *MockEnqueuer
	privateKey ed25519.PrivateKey
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Discord.PublicKey = hex.EncodeToString(publicKey)
	cfg.RateLimit.Regions = map[string]config.RegionLimit{
		"euw": {Short: 20, ShortWindowSec: 1, Long: 100, LongWindowSec: 120},
	}

	broker := &MockEnqueuer{}
	metrics := stats.NewMetricsWith("test", prometheus.NewRegistry())

	dispatcher, err := NewDispatcher(cfg, broker, nil, metrics)
	require.NoError(t, err)

	return &dispatcherFixture{dispatcher: dispatcher, broker: broker, privateKey: privateKey}
}

// signedRequest costruisce una richiesta /interactions firmata
func (f *dispatcherFixture) signedRequest(t *testing.T, payload interface{}) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := ed25519.Sign(f.privateKey, append([]byte(timestamp), body...))

	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(signature))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func analyzeCommand(matchID, region string) map[string]interface{} {
	return map[string]interface{}{
		"id":             "inter-1",
		"type":           interactionCommand,
		"application_id": "app-1",
		"token":          "tok-1",
		"data": map[string]interface{}{
			"name": "analyze",
			"options": []map[string]string{
				{"name": "match_id", "value": matchID},
				{"name": "region", "value": region},
			},
		},
		"member": map[string]interface{}{
			"user": map[string]string{"id": "user-1", "username": "alpha"},
		},
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestDispatcher_PingPong(t *testing.T) {
	f := newDispatcherFixture(t)

	req := f.signedRequest(t, map[string]interface{}{"id": "i", "type": interactionPing})
	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, responsePong, decodeBody(t, resp)["type"])
}

func TestDispatcher_RejectsBadSignature(t *testing.T) {
	f := newDispatcherFixture(t)

	body, _ := json.Marshal(analyzeCommand("EUW1_1000000001", "euw"))
	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(make([]byte, ed25519.SignatureSize)))
	req.Header.Set("X-Signature-Timestamp", "12345")

	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, f.broker.requests)
}

func TestDispatcher_ValidCommandDefersAndEnqueues(t *testing.T) {
	f := newDispatcherFixture(t)

	req := f.signedRequest(t, analyzeCommand("EUW1_1000000001", "euw"))
	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, responseDeferredMessage, decodeBody(t, resp)["type"])

	require.Len(t, f.broker.requests, 1)
	enqueued := f.broker.requests[0]
	assert.Equal(t, "EUW1_1000000001", enqueued.MatchID)
	assert.Equal(t, "euw", enqueued.Region)
	assert.Equal(t, "user-1", enqueued.RequesterID)
	assert.Equal(t, "tok-1", enqueued.InteractionToken)
	assert.Equal(t, "app-1", enqueued.ApplicationID)
	assert.NotEmpty(t, enqueued.RequestID)
	assert.WithinDuration(t, time.Now().UTC(), enqueued.RequestedAt, 5*time.Second)
}

func TestDispatcher_InvalidMatchIDIsSyncError(t *testing.T) {
	f := newDispatcherFixture(t)

	req := f.signedRequest(t, analyzeCommand("not-a-match-id", "euw"))
	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.EqualValues(t, responseMessage, body["type"])
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data["content"], "Invalid match id")
	assert.EqualValues(t, flagEphemeral, data["flags"])

	assert.Empty(t, f.broker.requests, "invalid arguments never enqueue work")
}

func TestDispatcher_UnknownRegionIsSyncError(t *testing.T) {
	f := newDispatcherFixture(t)

	req := f.signedRequest(t, analyzeCommand("EUW1_1000000001", "atlantis"))
	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.EqualValues(t, responseMessage, body["type"])
	assert.Empty(t, f.broker.requests)
}

func TestDispatcher_BrokerDownRepliesBusy(t *testing.T) {
	f := newDispatcherFixture(t)
	f.broker.enqueueErr = errors.New("connection refused")

	req := f.signedRequest(t, analyzeCommand("EUW1_1000000001", "euw"))
	resp, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.EqualValues(t, responseMessage, body["type"], "no deferred ack that will never be honored")
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data["content"], "busy")
}

func TestDispatcher_PlayerOptionCarriedInProfile(t *testing.T) {
	f := newDispatcherFixture(t)

	cmd := analyzeCommand("EUW1_1000000001", "euw")
	data := cmd["data"].(map[string]interface{})
	data["options"] = append(data["options"].([]map[string]string),
		map[string]string{"name": "player", "value": "Alpha#EUW"})

	req := f.signedRequest(t, cmd)
	_, err := f.dispatcher.app.Test(req)
	require.NoError(t, err)

	require.Len(t, f.broker.requests, 1)
	assert.Equal(t, "Alpha#EUW", f.broker.requests[0].UserProfile["riot_id"])
}

func TestDispatcher_HealthEndpoint(t *testing.T) {
	f := newDispatcherFixture(t)

	resp, err := f.dispatcher.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeBody(t, resp)["status"])
}

func TestDispatcher_InvalidPublicKeyRejectedAtConstruction(t *testing.T) {
	cfg := &config.Config{}
	cfg.Discord.PublicKey = "not-hex"

	_, err := NewDispatcher(cfg, &MockEnqueuer{}, nil, stats.NewMetricsWith("test", prometheus.NewRegistry()))
	assert.Error(t, err)
}
