package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirtybees/blocknewsletter/internal/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.RedisConfig
		wantAddrs []string
		wantErr   bool
	}{
		{name: "single from addr", cfg: config.RedisConfig{Addr: "r:6379"}, wantAddrs: []string{"r:6379"}},
		{name: "single takes first of addrs", cfg: config.RedisConfig{Mode: "single", Addrs: []string{"a:1", "b:2"}}, wantAddrs: []string{"a:1"}},
		{name: "sentinel without master", cfg: config.RedisConfig{Mode: "sentinel", Addrs: []string{"a:1"}}, wantErr: true},
		{name: "sentinel", cfg: config.RedisConfig{Mode: "sentinel", Addrs: []string{"a:1"}, MasterName: "m"}, wantAddrs: []string{"a:1"}},
		{name: "cluster needs two", cfg: config.RedisConfig{Mode: "cluster", Addrs: []string{"a:1"}}, wantErr: true},
		{name: "no address", cfg: config.RedisConfig{}, wantErr: true},
		{name: "unknown mode", cfg: config.RedisConfig{Mode: "ring", Addr: "a:1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := RedisOptions(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddrs, opts.Addrs)
		})
	}
}

func TestNewUniversalRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewUniversalRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
