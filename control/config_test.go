package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/control"
)

const sample = `
log_level: debug
tick: 10ms
channel_capacity: 256
max_datagrams_per_tick: 64
metrics_addr: 127.0.0.1:9100
sockets:
  - name: game
    listen: 127.0.0.1:7000
    peers: [127.0.0.1:7001, 127.0.0.1:7002]
  - name: chat
    listen: "[::1]:7100"
`

func TestParseConfig(t *testing.T) {
	cfg, err := control.ParseConfig([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, 10*time.Millisecond, cfg.Tick)
	assert.Equal(t, control.DefaultRecvBufferSize, cfg.RecvBufferSize, "defaults survive")
	assert.Equal(t, control.DefaultEventCapacity, cfg.EventCapacity)
	assert.Equal(t, 256, cfg.ChannelCapacity)
	assert.Equal(t, 64, cfg.MaxDatagramsPerTick)
	require.Len(t, cfg.Sockets, 2)

	game, ok := cfg.Socket("game")
	require.True(t, ok)
	assert.Equal(t, []string{"127.0.0.1:7001", "127.0.0.1:7002"}, game.Peers)
	chat, ok := cfg.Socket("chat")
	require.True(t, ok)
	assert.Empty(t, chat.Peers)
	_, ok = cfg.Socket("missing")
	assert.False(t, ok)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := control.ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, control.Default(), cfg)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestParseConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "colour: blue\n",
		"bad level":        "log_level: loud\n",
		"zero tick":        "tick: 0s\n",
		"tiny buffer":      "recv_buffer_size: 4\n",
		"negative cap":     "channel_capacity: -1\n",
		"negative budget":  "max_datagrams_per_tick: -5\n",
		"unnamed socket":   "sockets: [{listen: 127.0.0.1:1}]\n",
		"duplicate socket": "sockets: [{name: a, listen: 127.0.0.1:1}, {name: a, listen: 127.0.0.1:2}]\n",
		"no listen":        "sockets: [{name: a}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := control.ParseConfig([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	cfg, err := control.LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Sockets, 2)

	_, err = control.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
