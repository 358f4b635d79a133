package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func TestBuildFallsBackToMemoryStore(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	cfg := &config.Config{Cache: config.CacheConfig{Enabled: true, Remote: true}}

	engine, err := Build(context.Background(), cfg, zaptest.NewLogger(t), Options{Clock: clk})
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, BackendMemory, engine.Backend)
	assert.Nil(t, engine.Redis)
	assert.True(t, engine.Cache.Enabled())

	ctx := context.Background()
	ticket, err := engine.Tickets.CreateTicket(ctx, map[string]any{"subject": "Badge reader"}, "")
	require.NoError(t, err)
	assert.Equal(t, service.DefaultActor, *ticket.LastModifiedBy)

	statuses, err := engine.References.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 8)

	trend, err := engine.Analytics.Trend(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trend, 30)
	assert.Equal(t, 1, trend[29].Count)
}
