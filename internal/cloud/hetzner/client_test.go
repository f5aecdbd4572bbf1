package hetzner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joncarter1/brr/internal/cloud"
)

// testServer mocks the Hetzner Cloud API over httptest.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, mux: mux}
}

func (ts *testServer) client() *Client {
	hc := hcloud.NewClient(
		hcloud.WithToken("test-token"),
		hcloud.WithEndpoint(ts.server.URL),
	)
	return New("test-token", "fsn1", WithHCloudClient(hc))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func singlePage() schema.Meta {
	page := 1
	return schema.Meta{Pagination: &schema.MetaPagination{
		Page:         page,
		PerPage:      25,
		LastPage:     page,
		TotalEntries: 1,
	}}
}

func devLabels() map[string]string {
	return map[string]string{
		cloud.TagClusterName:    "dev",
		cloud.TagNodeRole:       "worker",
		cloud.TagFingerprint:    "abc123",
		cloud.TagRecoveryPolicy: "fail",
	}
}

func schemaServer(id int64, status string) schema.Server {
	return schema.Server{
		ID:      id,
		Name:    "dev-worker-1",
		Status:  status,
		Created: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Labels:  devLabels(),
		PublicNet: schema.ServerPublicNet{
			IPv4: schema.ServerPublicNetIPv4{IP: "203.0.113.5"},
		},
	}
}

func TestListInstancesUsesLabelSelectorAndMapsFields(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, cloud.TagClusterName+"=dev", r.URL.Query().Get("label_selector"))
		writeJSON(t, w, map[string]any{
			"servers": []schema.Server{schemaServer(42, "running")},
			"meta":    singlePage(),
		})
	})

	instances, err := ts.client().ListInstances(context.Background(), "dev")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	inst := instances[0]
	assert.Equal(t, "42", inst.ID)
	assert.Equal(t, "dev", inst.ClusterName)
	assert.Equal(t, cloud.RoleWorker, inst.NodeRole)
	assert.Equal(t, "abc123", inst.LaunchFingerprint)
	assert.Equal(t, cloud.StateRunning, inst.State)
	assert.Equal(t, "203.0.113.5", inst.ExternalAddress)
}

func TestStopInstanceAlreadyOffIsNoop(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, schema.ServerGetResponse{Server: schemaServer(42, "off")})
	})
	ts.mux.HandleFunc("/servers/42/actions/poweroff", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("poweroff issued for a server that is already off")
	})

	assert.NoError(t, ts.client().StopInstance(context.Background(), "42"))
}

func TestStartInstanceAlreadyRunningIsNoop(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, schema.ServerGetResponse{Server: schemaServer(42, "running")})
	})
	ts.mux.HandleFunc("/servers/42/actions/poweron", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("poweron issued for a server that is already running")
	})

	assert.NoError(t, ts.client().StartInstance(context.Background(), "42"))
}

func TestGetInstanceMissingIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		writeJSON(t, w, schema.ErrorResponse{Error: schema.Error{
			Code:    string(hcloud.ErrorCodeNotFound),
			Message: "server not found",
		}})
	})

	_, err := ts.client().GetInstance(context.Background(), "42")
	assert.True(t, cloud.IsNotFound(err))
}

func TestSetRecoveryPolicy(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method, "policy changes must not reach the API")
		writeJSON(t, w, schema.ServerGetResponse{Server: schemaServer(42, "running")})
	})
	client := ts.client()

	require.NoError(t, client.SetRecoveryPolicy(context.Background(), "42", "fail"))

	err := client.SetRecoveryPolicy(context.Background(), "42", "restart")
	var immutable *cloud.ImmutablePropertyError
	require.ErrorAs(t, err, &immutable)
	assert.Equal(t, "recovery_policy", immutable.Property)
}

func TestTerminateMalformedIDFailsLocally(t *testing.T) {
	ts := newTestServer(t)
	err := ts.client().TerminateInstance(context.Background(), "not-a-number")
	var validation *cloud.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestStateFromServer(t *testing.T) {
	tests := []struct {
		status hcloud.ServerStatus
		want   cloud.InstanceState
	}{
		{hcloud.ServerStatusInitializing, cloud.StatePending},
		{hcloud.ServerStatusRebuilding, cloud.StatePending},
		{hcloud.ServerStatusStarting, cloud.StateRestarting},
		{hcloud.ServerStatusRunning, cloud.StateRunning},
		{hcloud.ServerStatusMigrating, cloud.StateRunning},
		{hcloud.ServerStatusStopping, cloud.StateStopping},
		{hcloud.ServerStatusOff, cloud.StateStopped},
		{hcloud.ServerStatusDeleting, cloud.StateTerminating},
		{hcloud.ServerStatusUnknown, cloud.StateError},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, stateFromServer(tt.status))
		})
	}
}

func TestWrapErrorClassification(t *testing.T) {
	rateLimited := hcloud.Error{Code: hcloud.ErrorCodeRateLimitExceeded, Message: "slow down"}
	assert.True(t, cloud.IsTransient(wrapError("Op", rateLimited)))

	limit := hcloud.Error{Code: hcloud.ErrorCodeResourceLimitExceeded, Message: "server limit"}
	var quota *cloud.QuotaExceededError
	assert.ErrorAs(t, wrapError("Op", limit), &quota)

	invalid := hcloud.Error{Code: hcloud.ErrorCodeInvalidInput, Message: "bad name"}
	var validation *cloud.ValidationError
	assert.ErrorAs(t, wrapError("Op", invalid), &validation)

	assert.NoError(t, wrapError("Op", nil))
}

func TestDiscoverResourcesSweepsAllKinds(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, labelSelector, r.URL.Query().Get("label_selector"))
		writeJSON(t, w, map[string]any{
			"servers": []schema.Server{schemaServer(42, "running")},
			"meta":    singlePage(),
		})
	})
	ts.mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"volumes": []schema.Volume{{ID: 7, Name: "dev-data"}},
			"meta":    singlePage(),
		})
	})
	ts.mux.HandleFunc("/ssh_keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"ssh_keys": []schema.SSHKey{{ID: 9, Name: "dev-key"}},
			"meta":     singlePage(),
		})
	})
	ts.mux.HandleFunc("/networks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"networks": []schema.Network{{ID: 3, Name: "dev-net"}},
			"meta":     singlePage(),
		})
	})

	client := ts.client()
	regions, err := client.Regions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{globalRegion}, regions)

	resources, err := client.DiscoverResources(context.Background(), globalRegion)
	require.NoError(t, err)
	require.Len(t, resources, 4)

	kinds := map[cloud.ResourceKind]string{}
	for _, r := range resources {
		kinds[r.Kind] = r.ID
	}
	assert.Equal(t, "42", kinds[cloud.KindInstance])
	assert.Equal(t, "7", kinds[cloud.KindVolume])
	assert.Equal(t, "9", kinds[cloud.KindKeyPair])
	assert.Equal(t, "3", kinds[cloud.KindNetwork])
}
