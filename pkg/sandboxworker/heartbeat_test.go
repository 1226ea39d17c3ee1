package sandboxworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/pkg/heartbeat"
)

func TestHeartbeatEmitter_Beat_PostsWithMatchingChecksum(t *testing.T) {
	var received heartbeat.Vitals
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/heartbeats", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHeartbeatEmitter(srv.URL, "agent-1")
	metrics := map[string]interface{}{"turns": float64(3)}
	require.NoError(t, e.Beat(context.Background(), "running", nil, metrics))

	assert.Equal(t, "agent-1", received.AgentID)
	assert.Equal(t, int64(1), received.Sequence)
	assert.Equal(t, heartbeat.Checksum("agent-1", 1, "running", metrics), received.Checksum)
}

func TestHeartbeatEmitter_Beat_AdvancesSequence(t *testing.T) {
	var sequences []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var v heartbeat.Vitals
		require.NoError(t, json.NewDecoder(req.Body).Decode(&v))
		sequences = append(sequences, v.Sequence)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHeartbeatEmitter(srv.URL, "agent-2")
	require.NoError(t, e.Beat(context.Background(), "running", nil, nil))
	require.NoError(t, e.Beat(context.Background(), "running", nil, nil))

	assert.Equal(t, []int64{1, 2}, sequences)
}

func TestHeartbeatEmitter_Beat_ErrorsOnServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHeartbeatEmitter(srv.URL, "agent-3")
	assert.Error(t, e.Beat(context.Background(), "running", nil, nil))
}
