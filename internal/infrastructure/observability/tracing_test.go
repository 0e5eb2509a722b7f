package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "levelup"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	// non-routable, nothing is exported before shutdown
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		ServiceName:    "levelup",
		ServiceVersion: "test",
		Endpoint:       "http://192.0.2.1:4318",
	})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
