package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unixServer(t *testing.T, handler http.Handler) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "docker.sock")
	l, err := net.Listen("unix", socket)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)
	return socket
}

func TestDockerProbe(t *testing.T) {
	var status int
	socket := unixServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/json", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("[]"))
	}))
	probe := NewDockerProbe(socket, time.Second)

	status = http.StatusOK
	assert.NoError(t, probe.ListContainers(context.Background()))

	status = http.StatusInternalServerError
	assert.Error(t, probe.ListContainers(context.Background()))
}

func TestDockerProbeMissingSocket(t *testing.T) {
	probe := NewDockerProbe(filepath.Join(t.TempDir(), "absent.sock"), time.Second)
	assert.Error(t, probe.ListContainers(context.Background()))
}

func TestHostHardware(t *testing.T) {
	hw := NewHostHardware("super")
	ctx := context.Background()

	total, err := hw.TotalMemoryBytes(ctx)
	require.NoError(t, err)
	assert.Positive(t, total)

	cores, err := hw.CPUCoreCount(ctx)
	require.NoError(t, err)
	assert.Positive(t, cores)

	tier, err := hw.NodeTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "super", tier)
}

func TestHTTPDistressReporter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		want    bool
		wantErr bool
		check   func(t *testing.T, severity int, message *string, hw bool)
	}{
		{
			name: "calm",
			body: `{"status":"success","data":{"dosState":0,"dosMessage":null,"nodeHardwareSpecsGood":true}}`,
			code: http.StatusOK,
			want: true,
			check: func(t *testing.T, severity int, message *string, hw bool) {
				assert.Zero(t, severity)
				assert.Nil(t, message)
				assert.True(t, hw)
			},
		},
		{
			name: "flagged",
			body: `{"status":"success","data":{"dosState":11,"dosMessage":"Flux collision detection","nodeHardwareSpecsGood":false}}`,
			code: http.StatusOK,
			want: true,
			check: func(t *testing.T, severity int, message *string, hw bool) {
				assert.Equal(t, 11, severity)
				require.NotNil(t, message)
				assert.Equal(t, "Flux collision detection", *message)
				assert.False(t, hw)
			},
		},
		{
			name: "error status",
			body: `{"status":"error","data":{}}`,
			code: http.StatusOK,
			want: false,
		},
		{
			name:    "bad gateway",
			code:    http.StatusBadGateway,
			wantErr: true,
		},
		{
			name:    "garbage",
			body:    `not json`,
			code:    http.StatusOK,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			state, err := NewHTTPDistressReporter(srv.URL, time.Second).DistressState(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, state.OK)
			if tt.check != nil {
				tt.check(t, state.Severity, state.Message, state.HardwareAdequate)
			}
		})
	}
}

func TestCalmReporter(t *testing.T) {
	state, err := CalmReporter{}.DistressState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.OK)
	assert.True(t, state.HardwareAdequate)
}
