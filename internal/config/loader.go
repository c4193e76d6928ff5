package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"xui-fleet/internal/constants"
	apperrors "xui-fleet/internal/errors"
)

// Load loads the configuration from an optional .env file and environment variables
func Load() (*Config, error) {
	// A missing .env is fine, the process environment is used as is
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, &apperrors.ConfigError{Section: "dotenv", Message: err.Error()}
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STATUS_ADDR", constants.DefaultStatusAt)
	v.SetDefault("LINK_REMARK", constants.DefaultRemark)
	v.SetDefault("MAX_CLIENTS", constants.DefaultMaxClients)
	v.SetDefault("MAX_INBOUNDS", constants.DefaultMaxInbounds)
	v.SetDefault("CACHE_TTL_INBOUNDS", constants.DefaultInboundsTTL)
	v.SetDefault("CACHE_TTL_CLIENTS", constants.DefaultClientsTTL)
	v.SetDefault("HTTP_MAX_CONNECTIONS", constants.DefaultMaxConnections)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:   v.GetString("LOG_LEVEL"),
		StatusAddr: strings.TrimSpace(v.GetString("STATUS_ADDR")),
		LinkRemark: strings.TrimSpace(v.GetString("LINK_REMARK")),
		Telegram: TelegramConfig{
			Token: strings.TrimSpace(v.GetString("TELEGRAM_TOKEN")),
		},
		Panel: PanelConfig{
			MaxClients:     v.GetInt("MAX_CLIENTS"),
			MaxInbounds:    v.GetInt("MAX_INBOUNDS"),
			InboundsTTL:    time.Duration(v.GetInt("CACHE_TTL_INBOUNDS")) * time.Second,
			ClientsTTL:     time.Duration(v.GetInt("CACHE_TTL_CLIENTS")) * time.Second,
			MaxConnections: v.GetInt("HTTP_MAX_CONNECTIONS"),
		},
		Servers: make(map[string]ServerConfig),
	}

	// Parse admin IDs
	if raw := v.GetString("ADMIN_IDS"); raw != "" {
		for _, idStr := range strings.Split(raw, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, &apperrors.ConfigError{Section: "ADMIN_IDS", Message: fmt.Sprintf("invalid id %q", idStr)}
			}
			cfg.Telegram.AdminIDs = append(cfg.Telegram.AdminIDs, id)
		}
	}

	// Parse server list
	for _, sid := range strings.Split(v.GetString("SERVERS"), ",") {
		sid = strings.TrimSpace(sid)
		if sid == "" {
			continue
		}
		if _, dup := cfg.Servers[sid]; dup {
			return nil, &apperrors.ConfigError{Section: "SERVERS", Message: fmt.Sprintf("duplicate server id %q", sid)}
		}

		server, err := loadServer(v, sid)
		if err != nil {
			return nil, err
		}
		cfg.Servers[sid] = server
		cfg.ServerOrder = append(cfg.ServerOrder, sid)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadServer reads the {SID}_* variables of one server
func loadServer(v *viper.Viper, sid string) (ServerConfig, error) {
	prefix := strings.ToUpper(sid) + "_"
	get := func(key string) string {
		return strings.TrimSpace(v.GetString(prefix + key))
	}

	server := ServerConfig{
		ID:        sid,
		BaseURL:   strings.TrimRight(get("BASE_URL"), "/"),
		Username:  get("USERNAME"),
		Password:  get("PASSWORD"),
		VerifySSL: v.GetBool(prefix + "VERIFY_SSL"),
		Domain:    get("SERVER_DOMAIN"),
		Flow:      get("FLOW"),
		PBK:       get("PBK"),
		SNI:       get("SNI"),
		SID:       get("SID"),
		FP:        get("FP"),
		SPX:       get("SPX"),
	}
	if server.FP == "" {
		server.FP = constants.DefaultFP
	}
	if server.SPX == "" {
		server.SPX = constants.DefaultSPX
	}

	section := "server " + sid
	if raw := get("SERVER_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return ServerConfig{}, &apperrors.ConfigError{Section: section, Message: fmt.Sprintf("invalid SERVER_PORT %q", raw)}
		}
		server.Port = port
	}

	for _, idStr := range strings.Split(get("INBOUNDS"), ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return ServerConfig{}, &apperrors.ConfigError{Section: section, Message: fmt.Sprintf("invalid inbound id %q", idStr)}
		}
		server.Inbounds = append(server.Inbounds, id)
	}

	required := []struct{ key, value string }{
		{"BASE_URL", server.BaseURL},
		{"USERNAME", server.Username},
		{"PASSWORD", server.Password},
		{"SERVER_DOMAIN", server.Domain},
		{"PBK", server.PBK},
		{"SNI", server.SNI},
		{"SID", server.SID},
	}
	for _, r := range required {
		if r.value == "" {
			return ServerConfig{}, &apperrors.ConfigError{Section: section, Message: prefix + r.key + " is required"}
		}
	}
	if server.Port == 0 {
		return ServerConfig{}, &apperrors.ConfigError{Section: section, Message: prefix + "SERVER_PORT is required"}
	}
	if len(server.Inbounds) == 0 {
		return ServerConfig{}, &apperrors.ConfigError{Section: section, Message: prefix + "INBOUNDS is required"}
	}

	return server, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return &apperrors.ConfigError{Section: "telegram", Message: "TELEGRAM_TOKEN is required"}
	}

	if len(cfg.ServerOrder) == 0 {
		return &apperrors.ConfigError{Section: "SERVERS", Message: "at least one server id is required"}
	}

	if cfg.Panel.MaxClients <= 0 {
		return &apperrors.ConfigError{Section: "panel", Message: "MAX_CLIENTS must be positive"}
	}
	if cfg.Panel.MaxConnections <= 0 {
		return &apperrors.ConfigError{Section: "panel", Message: "HTTP_MAX_CONNECTIONS must be positive"}
	}
	if cfg.Panel.InboundsTTL < 0 || cfg.Panel.ClientsTTL < 0 {
		return &apperrors.ConfigError{Section: "panel", Message: "cache TTLs cannot be negative"}
	}

	return nil
}
