package config

import "time"

// Config represents the application configuration
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Panel    PanelConfig    `mapstructure:"panel"`
	Servers  map[string]ServerConfig
	// ServerOrder keeps the order of SERVERS, used wherever servers are scanned in sequence
	ServerOrder []string
	StatusAddr  string `mapstructure:"status_addr"`
	LinkRemark  string `mapstructure:"link_remark"`
	LogLevel    string `mapstructure:"log_level"`
}

// TelegramConfig holds the Telegram bot configuration
type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

// PanelConfig holds the tunables shared by all servers
type PanelConfig struct {
	MaxClients     int           `mapstructure:"max_clients"`
	MaxInbounds    int           `mapstructure:"max_inbounds"`
	InboundsTTL    time.Duration `mapstructure:"cache_ttl_inbounds"`
	ClientsTTL     time.Duration `mapstructure:"cache_ttl_clients"`
	MaxConnections int           `mapstructure:"http_max_connections"`
}

// ServerConfig holds the connection descriptor of one panel server
type ServerConfig struct {
	ID        string `mapstructure:"id"`
	BaseURL   string `mapstructure:"base_url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	VerifySSL bool   `mapstructure:"verify_ssl"`
	Inbounds  []int  `mapstructure:"inbounds"`

	// VLESS link parameters
	Domain string `mapstructure:"server_domain"`
	Port   int    `mapstructure:"server_port"`
	Flow   string `mapstructure:"flow"`
	PBK    string `mapstructure:"pbk"`
	SNI    string `mapstructure:"sni"`
	SID    string `mapstructure:"sid"`
	FP     string `mapstructure:"fp"`
	SPX    string `mapstructure:"spx"`
}

// DefaultInbound returns the first configured inbound id
func (s ServerConfig) DefaultInbound() int {
	if len(s.Inbounds) == 0 {
		return 0
	}
	return s.Inbounds[0]
}
