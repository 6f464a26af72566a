package runtime

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/mohammad-safakhou/groundchat/config"
)

func TestSetupTelemetryExportsToPrometheus(t *testing.T) {
	ctx := context.Background()
	tel, err := SetupTelemetry(ctx, config.TelemetryConfig{ServiceName: "groundchat-test"}, TelemetryOptions{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	counter, err := otel.Meter("test").Int64Counter("telemetry_probe")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	srv := httptest.NewServer(tel.MetricsHandler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "telemetry_probe")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestShutdownNil(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NotNil(t, tel.MetricsHandler())
}
