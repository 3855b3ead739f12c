package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	local := Setup("local")
	require.NotNil(t, local)
	assert.True(t, local.Enabled(ctx, slog.LevelDebug))

	dev := Setup("dev")
	require.NotNil(t, dev)
	assert.True(t, dev.Enabled(ctx, slog.LevelDebug))

	prod := Setup("prod")
	require.NotNil(t, prod)
	assert.False(t, prod.Enabled(ctx, slog.LevelDebug))
	assert.True(t, prod.Enabled(ctx, slog.LevelInfo))
}

func TestSetup_UnknownEnv(t *testing.T) {
	// опечатка в конфиге не должна ронять сервис на первом же логе
	log := Setup("staging")
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}
