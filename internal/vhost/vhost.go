// Package vhost selects the ServerConfig bound to an accepted connection's
// listening port and the request's Host header.
package vhost

import (
	"strings"

	"github.com/rawserve/httpcore/internal/model"
)

// ForPort returns the subset of configs bound to port, preserving
// declaration order.
func ForPort(configs []model.ServerConfig, port uint16) []model.ServerConfig {
	out := make([]model.ServerConfig, 0, len(configs))
	for _, c := range configs {
		if c.ListenPort == port {
			out = append(out, c)
		}
	}
	return out
}

// Select picks the config whose ServerName matches hostHeader (port suffix
// stripped, case-insensitive) among the configs already filtered to a
// single port. It falls back to the first config on no match, and to the
// zero value when portConfigs is empty.
func Select(portConfigs []model.ServerConfig, hostHeader string) model.ServerConfig {
	if len(portConfigs) == 0 {
		return model.ServerConfig{}
	}

	name := strings.ToLower(hostHeader)
	if idx := strings.LastIndexByte(name, ':'); idx != -1 {
		name = name[:idx]
	}

	for _, c := range portConfigs {
		if strings.ToLower(c.ServerName) == name {
			return c
		}
	}
	return portConfigs[0]
}
