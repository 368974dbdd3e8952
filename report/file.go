package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteFile writes rep at path as YAML when the extension is .yaml or .yml, and as indented
// JSON otherwise.
func WriteFile(path string, rep Report) error {
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(rep)
	} else {
		b, err = json.MarshalIndent(rep, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	return os.WriteFile(path, b, 0o600)
}

// LoadFile reads a report written by WriteFile.
func LoadFile(path string) (Report, error) {
	var rep Report

	b, err := os.ReadFile(path)
	if err != nil {
		return rep, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(b, &rep)
	} else {
		err = json.Unmarshal(b, &rep)
	}
	if err != nil {
		return rep, fmt.Errorf("failed to unmarshal report at path %s: %w", path, err)
	}

	return rep, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
