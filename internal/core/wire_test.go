package core

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/config"
	"github.com/steveyegge/vitality/internal/storage"
	"github.com/steveyegge/vitality/internal/types"
)

func TestFromConfigChannels(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{config.ChannelConsole, "alice:"},
		{config.ChannelEmail, "alice@example.com:"},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			ctx := context.Background()
			store, err := storage.NewStorage(ctx, &storage.Config{Path: filepath.Join(t.TempDir(), "wire.db")})
			require.NoError(t, err)
			defer func() { _ = store.Close() }()

			cfg := config.DefaultConfig()
			cfg.Delivery.Channel = tt.channel
			var out bytes.Buffer
			svc, err := FromConfig(cfg, store, &out, nil)
			require.NoError(t, err)

			_, err = svc.RegisterSubject(ctx, "alice", "alice@example.com", "Alice")
			require.NoError(t, err)
			job := types.NewJob("job-1", "alice", types.Payload{Subject: "Hello", Body: "Welcome"}, time.Now())
			res := svc.Dispatch(ctx, []*types.NotificationJob{job}, nil)
			assert.Equal(t, 1, res.Delivered)
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), "Welcome")
		})
	}
}

func TestFromConfigAIRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cfg := config.DefaultConfig()
	cfg.AI.Enabled = true
	_, err = FromConfig(cfg, store, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestNewSenderRejectsUnknownChannel(t *testing.T) {
	_, err := NewSender("sms", nil, nil)
	assert.Error(t, err)
}
