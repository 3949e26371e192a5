package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Host is an LLM application that launches MCP servers from a JSON file.
type Host string

const (
	HostClaudeDesktop Host = "claude-desktop"
	HostCursor        Host = "cursor"
	HostClaudeCode    Host = "claude-code"
)

// Hosts lists the supported hosts.
func Hosts() []Host {
	return []Host{HostClaudeDesktop, HostCursor, HostClaudeCode}
}

// ParseHost validates a host name.
func ParseHost(s string) (Host, error) {
	for _, h := range Hosts() {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown host %q (want claude-desktop, cursor or claude-code)", s)
}

// HostPath returns where host keeps its MCP server list on goos.
func HostPath(host Host, goos string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return hostPath(host, goos, home, os.Getenv("APPDATA"))
}

func hostPath(host Host, goos, home, appData string) (string, error) {
	switch host {
	case HostClaudeDesktop:
		switch goos {
		case "darwin":
			return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
		case "windows":
			if appData == "" {
				return "", errors.New("APPDATA is not set")
			}
			return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
		default:
			return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
		}
	case HostCursor:
		return filepath.Join(home, ".cursor", "mcp.json"), nil
	case HostClaudeCode:
		return filepath.Join(home, ".claude.json"), nil
	}
	return "", fmt.Errorf("unknown host %q", host)
}

// ServerConfig is one entry under mcpServers.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

const serversKey = "mcpServers"

// HostConfig is a host's JSON configuration. Keys other than mcpServers,
// and server entries this package did not write, are kept as they were.
type HostConfig struct {
	Path string
	// BackupPath is set when Load found invalid JSON and moved it aside.
	BackupPath string

	other   map[string]json.RawMessage
	servers map[string]json.RawMessage
}

// LoadHostConfig reads path. A missing file yields an empty config; a file
// that is not valid JSON is renamed to <path>.backup and also yields an
// empty config.
func LoadHostConfig(path string) (*HostConfig, error) {
	c := &HostConfig{
		Path:    path,
		other:   map[string]json.RawMessage{},
		servers: map[string]json.RawMessage{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(data, &c.other); err != nil {
		backup := path + ".backup"
		if err := os.Rename(path, backup); err != nil {
			return nil, fmt.Errorf("failed to back up invalid config: %w", err)
		}
		c.other = map[string]json.RawMessage{}
		c.BackupPath = backup
		return c, nil
	}
	if c.other == nil {
		c.other = map[string]json.RawMessage{}
	}

	if raw, ok := c.other[serversKey]; ok {
		delete(c.other, serversKey)
		if err := json.Unmarshal(raw, &c.servers); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", serversKey, err)
		}
		if c.servers == nil {
			c.servers = map[string]json.RawMessage{}
		}
	}
	return c, nil
}

// Upsert adds or replaces the named server.
func (c *HostConfig) Upsert(name string, s ServerConfig) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal server %s: %w", name, err)
	}
	c.servers[name] = raw
	return nil
}

// Remove deletes the named server and reports whether it existed.
func (c *HostConfig) Remove(name string) bool {
	_, ok := c.servers[name]
	delete(c.servers, name)
	return ok
}

// Server returns the named server entry.
func (c *HostConfig) Server(name string) (ServerConfig, bool, error) {
	raw, ok := c.servers[name]
	if !ok {
		return ServerConfig{}, false, nil
	}
	var s ServerConfig
	if err := json.Unmarshal(raw, &s); err != nil {
		return ServerConfig{}, true, fmt.Errorf("failed to parse server %s: %w", name, err)
	}
	return s, true, nil
}

// ServerNames returns the configured server names, sorted.
func (c *HostConfig) ServerNames() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the config as indented JSON, creating parent directories.
func (c *HostConfig) Save() error {
	doc := make(map[string]any, len(c.other)+1)
	for k, v := range c.other {
		doc[k] = v
	}
	doc[serversKey] = c.servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
