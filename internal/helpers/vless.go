package helpers

import (
	"fmt"
	"strings"

	"xui-fleet/internal/config"
	"xui-fleet/internal/constants"
)

// BuildVLESSLink builds the import link of a reality client. Values are
// written as configured, without escaping, in a fixed order.
func BuildVLESSLink(server config.ServerConfig, email, remark string) string {
	fp := server.FP
	if fp == "" {
		fp = constants.DefaultFP
	}
	spx := server.SPX
	if spx == "" {
		spx = constants.DefaultSPX
	}
	if remark == "" {
		remark = constants.DefaultRemark
	}

	params := []struct {
		key   string
		value string
	}{
		{"type", "tcp"},
		{"security", "reality"},
		{"pbk", server.PBK},
		{"fp", fp},
		{"sni", server.SNI},
		{"sid", server.SID},
		{"spx", spx},
		{"flow", server.Flow},
	}

	query := make([]string, 0, len(params))
	for _, p := range params {
		query = append(query, p.key+"="+p.value)
	}

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s-%s",
		email, server.Domain, server.Port, strings.Join(query, "&"), remark, email)
}
