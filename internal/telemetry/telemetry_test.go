package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotradar/depotradar/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "depotradar-test",
		ServiceVersion: "0.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:14317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)

	// A disabled provider installs nothing and shuts down cleanly.
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProvider_Shutdown_Idempotent(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProvider_Shutdown_ZeroValue(t *testing.T) {
	var provider telemetry.Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}
