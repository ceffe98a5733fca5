// Package router sends a question to the climate server best placed to
// answer it, or straight to ClimateGPT for general knowledge.
package router

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClimateGPT is the registry entry for the model itself. It is never
// selected as a data server.
const ClimateGPT = "climategpt_api"

// DefaultTimeout applies to servers without a timeout entry.
const DefaultTimeout = 10 * time.Minute

// ErrEmptyRegistry is returned for a registry with no data servers.
var ErrEmptyRegistry = errors.New("server registry lists no data servers")

// Schema summarises a server's data.
type Schema struct {
	Tables    []string `yaml:"tables" json:"tables"`
	TimeRange string   `yaml:"time_range" json:"time_range"`
}

// Server is one registry entry.
type Server struct {
	Name         string   `yaml:"-" json:"name"`
	URL          string   `yaml:"url" json:"url"`
	Description  string   `yaml:"description" json:"description"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
	Schema       *Schema  `yaml:"schema,omitempty" json:"schema,omitempty"`
	// Timeout is in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// BaseURL is the server URL without a trailing /query.
func (s Server) BaseURL() string {
	return strings.TrimSuffix(strings.TrimRight(s.URL, "/"), "/query")
}

// QueryURL is the server's /query endpoint.
func (s Server) QueryURL() string {
	return s.BaseURL() + "/query"
}

// RequestTimeout returns the configured timeout or def.
func (s Server) RequestTimeout(def time.Duration) time.Duration {
	if s.Timeout > 0 {
		return time.Duration(s.Timeout) * time.Second
	}
	if def > 0 {
		return def
	}
	return DefaultTimeout
}

// Registry is the set of known servers, ordered by name.
type Registry struct {
	servers []Server
}

// LoadRegistry reads a YAML or JSON registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes a registry keyed by server name. JSON input is
// accepted since it is valid YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var raw map[string]Server
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	reg := &Registry{}
	for name, s := range raw {
		s.Name = name
		reg.servers = append(reg.servers, s)
	}
	sort.Slice(reg.servers, func(i, j int) bool { return reg.servers[i].Name < reg.servers[j].Name })

	if len(reg.DataServers()) == 0 {
		return nil, ErrEmptyRegistry
	}
	return reg, nil
}

// All returns every entry, including ClimateGPT.
func (r *Registry) All() []Server {
	return append([]Server(nil), r.servers...)
}

// DataServers returns the entries that front a dataset.
func (r *Registry) DataServers() []Server {
	var out []Server
	for _, s := range r.servers {
		if s.Name != ClimateGPT {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds a server by name.
func (r *Registry) Lookup(name string) (Server, bool) {
	for _, s := range r.servers {
		if s.Name == name {
			return s, true
		}
	}
	return Server{}, false
}
