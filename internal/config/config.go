// Package config loads and validates the JSON array of virtual host
// definitions the server starts with.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rawserve/httpcore/internal/model"
	"github.com/rawserve/httpcore/pkg/constants"
	"github.com/rawserve/httpcore/pkg/errors"
)

// Load reads and validates a JSON array of virtual host configs from path.
func Load(path string) ([]model.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("reading config %s", path), err)
	}

	var configs []model.ServerConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("parsing config %s: %v", path, err))
	}

	for i := range configs {
		if configs[i].ClientBodySize == 0 {
			configs[i].ClientBodySize = constants.MaxContentLength
		}
	}

	if err := Validate(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// Validate rejects a config set the server cannot safely start with.
func Validate(configs []model.ServerConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("config: no virtual hosts defined")
	}

	seen := make(map[string]struct{})
	for _, c := range configs {
		if c.ServerName == "" {
			return fmt.Errorf("config: virtual host on port %d has no server_name", c.ListenPort)
		}
		if c.StaticFilesPrefix == "" {
			return fmt.Errorf("config: virtual host %q has no static_files_prefix", c.ServerName)
		}
		if c.ErrorPagesPrefix == "" {
			return fmt.Errorf("config: virtual host %q has no error_pages_prefix", c.ServerName)
		}
		if c.DefaultFile == "" {
			return fmt.Errorf("config: virtual host %q has no default_file", c.ServerName)
		}

		key := fmt.Sprintf("%d/%s", c.ListenPort, c.ServerName)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: duplicate virtual host %q on port %d", c.ServerName, c.ListenPort)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Ports returns the distinct listen ports across configs, in first-seen order.
func Ports(configs []model.ServerConfig) []uint16 {
	seen := make(map[uint16]struct{})
	var ports []uint16
	for _, c := range configs {
		if _, ok := seen[c.ListenPort]; ok {
			continue
		}
		seen[c.ListenPort] = struct{}{}
		ports = append(ports, c.ListenPort)
	}
	return ports
}
