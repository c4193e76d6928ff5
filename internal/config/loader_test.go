package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "xui-fleet/internal/errors"
)

func setServerEnv(t *testing.T, prefix string) {
	t.Helper()
	t.Setenv(prefix+"_BASE_URL", "https://panel.example.com:2053/")
	t.Setenv(prefix+"_USERNAME", "admin")
	t.Setenv(prefix+"_PASSWORD", "secret")
	t.Setenv(prefix+"_INBOUNDS", "3, 7")
	t.Setenv(prefix+"_SERVER_DOMAIN", "vpn.example.com")
	t.Setenv(prefix+"_SERVER_PORT", "443")
	t.Setenv(prefix+"_FLOW", "xtls-rprx-vision")
	t.Setenv(prefix+"_PBK", "pubkey")
	t.Setenv(prefix+"_SNI", "www.example.org")
	t.Setenv(prefix+"_SID", "abcd")
}

func TestLoadMultipleServers(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "1, 2")
	t.Setenv("SERVERS", "main,de")
	t.Setenv("CACHE_TTL_CLIENTS", "30")
	setServerEnv(t, "MAIN")
	setServerEnv(t, "DE")
	t.Setenv("DE_VERIFY_SSL", "true")
	t.Setenv("DE_FP", "chrome")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "de"}, cfg.ServerOrder)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AdminIDs)
	assert.Equal(t, 15, cfg.Panel.MaxClients)
	assert.Equal(t, 30*time.Second, cfg.Panel.ClientsTTL)
	assert.Equal(t, 60*time.Second, cfg.Panel.InboundsTTL)
	assert.Equal(t, 20, cfg.Panel.MaxConnections)

	main := cfg.Servers["main"]
	assert.Equal(t, "https://panel.example.com:2053", main.BaseURL)
	assert.Equal(t, []int{3, 7}, main.Inbounds)
	assert.Equal(t, 3, main.DefaultInbound())
	assert.Equal(t, "random", main.FP)
	assert.Equal(t, "/", main.SPX)
	assert.False(t, main.VerifySSL)

	de := cfg.Servers["de"]
	assert.True(t, de.VerifySSL)
	assert.Equal(t, "chrome", de.FP)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{
			name: "no servers",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "")
			},
		},
		{
			name: "missing password",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "main")
				setServerEnv(t, "MAIN")
				t.Setenv("MAIN_PASSWORD", "")
			},
		},
		{
			name: "bad inbound id",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "main")
				setServerEnv(t, "MAIN")
				t.Setenv("MAIN_INBOUNDS", "1,x")
			},
		},
		{
			name: "bad port",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "main")
				setServerEnv(t, "MAIN")
				t.Setenv("MAIN_SERVER_PORT", "70000")
			},
		},
		{
			name: "duplicate server",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "main,main")
				setServerEnv(t, "MAIN")
			},
		},
		{
			name: "zero max clients",
			setup: func(t *testing.T) {
				t.Setenv("SERVERS", "main")
				setServerEnv(t, "MAIN")
				t.Setenv("MAX_CLIENTS", "0")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_TOKEN", "token")
			tt.setup(t)

			_, err := Load()
			require.Error(t, err)
			var cfgErr *apperrors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}
