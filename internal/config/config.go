// Package config parses the optional TOML defaults file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// File represents the TOML configuration file. Pointer fields distinguish
// "unset" from zero values; unset fields leave the built-in defaults alone.
type File struct {
	Distance DistanceConfig `toml:"distance"`
}

// DistanceConfig maps the distance command settings.
type DistanceConfig struct {
	SNPThreshold   *int     `toml:"snp-threshold"`
	Filter         *bool    `toml:"filter"`
	ClockRate      *float64 `toml:"clock-rate"`
	TransRate      *float64 `toml:"trans-rate"`
	TransThreshold *int     `toml:"trans-threshold"`
	Precision      *float64 `toml:"precision"`
	Threads        *int     `toml:"threads"`
}

// Load reads a TOML config from path.
func Load(path string) (File, error) {
	var cfg File
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return File{}, fmt.Errorf("config %s: unknown key %q", path, undec[0].String())
	}
	return cfg, nil
}
