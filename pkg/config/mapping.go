package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Mapping is a loaded preset: event descriptors mapped to target key names.
// The descriptor format ("type,code,value") belongs to the preset files and
// is interpreted by the injection pipeline.
type Mapping struct {
	Keys map[string]string `json:"mapping"`
}

// LoadMapping reads a preset file.
func LoadMapping(path string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open preset: %w", err)
	}
	defer file.Close()

	mapping := &Mapping{}
	if err := json.NewDecoder(file).Decode(mapping); err != nil {
		return nil, fmt.Errorf("decode preset: %w", err)
	}

	if mapping.Keys == nil {
		mapping.Keys = make(map[string]string)
	}

	return mapping, nil
}
