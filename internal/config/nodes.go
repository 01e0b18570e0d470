package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/pkg/utils"
	"gopkg.in/yaml.v3"
)

// NodeEntry is one configured target: a display name and the address its
// telemetry server listens on.
type NodeEntry struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type nodesFile struct {
	Nodes []NodeEntry `yaml:"nodes"`
}

// DefaultNodes is used when no node list file exists.
func DefaultNodes() []NodeEntry {
	return []NodeEntry{
		{Name: "Timeline", Address: "ws://127.0.0.1:3000"},
		{Name: "Incubator", Address: "ws://127.0.0.2:3000"},
	}
}

// LoadNodes reads the node list. A missing file yields DefaultNodes; any
// other problem, including an unusable address, is a startup error.
// Returned addresses are normalised websocket URLs.
func LoadNodes(path string) ([]NodeEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return normaliseNodes(DefaultNodes())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read nodes file %s: %v", errs.ErrStartup, path, err)
	}
	var f nodesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse nodes file %s: %v", errs.ErrStartup, path, err)
	}
	if len(f.Nodes) == 0 {
		return nil, fmt.Errorf("%w: nodes file %s lists no nodes", errs.ErrStartup, path)
	}
	return normaliseNodes(f.Nodes)
}

func normaliseNodes(entries []NodeEntry) ([]NodeEntry, error) {
	out := make([]NodeEntry, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: node %d has no name", errs.ErrStartup, i)
		}
		url, err := utils.BuildWebSocketURL(e.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", errs.ErrStartup, e.Name, err)
		}
		out = append(out, NodeEntry{Name: e.Name, Address: url})
	}
	return out, nil
}
