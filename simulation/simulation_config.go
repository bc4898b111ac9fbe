// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package simulation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/mac"
	"github.com/openthread/ot-macsim/pcap"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/radiomodel"
)

const (
	DefaultOutputDir = "tmp"
	DefaultLogLevel  = "info"
)

// Format selects the encoding of a configuration file.
type Format int

const (
	FormatYaml Format = iota
	FormatToml
)

// FormatOf picks the format from a file extension; anything but .toml is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatToml
	}
	return FormatYaml
}

type Config struct {
	Id int `yaml:"id" toml:"id"`
	// Seed of the random sources; 0 picks a time based seed.
	Seed     int64  `yaml:"seed" toml:"seed"`
	LogLevel string `yaml:"log-level" toml:"log-level"`
	// Realtime runs radio, driver and scheduler as goroutines paced to wall time.
	Realtime  bool   `yaml:"realtime" toml:"realtime"`
	OutputDir string `yaml:"output-dir" toml:"output-dir"`
	Pcap      string `yaml:"pcap" toml:"pcap"`
	Kpi       bool   `yaml:"kpi" toml:"kpi"`
	// PibProfile names a YAML file with PIB values that replace Pib.
	PibProfile string `yaml:"pib-profile" toml:"pib-profile"`

	TaskBacklog int               `yaml:"task-backlog" toml:"task-backlog"`
	Driver      driver.Config     `yaml:"driver" toml:"driver"`
	Radio       radiomodel.Config `yaml:"radio" toml:"radio"`
	Mac         mac.Config        `yaml:"mac" toml:"mac"`
	Pib         pib.Values        `yaml:"pib" toml:"pib"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:    DefaultLogLevel,
		OutputDir:   DefaultOutputDir,
		Pcap:        pcap.FrameTypeOffStr,
		TaskBacklog: 4,
		Driver:      driver.DefaultConfig(),
		Radio:       radiomodel.DefaultConfig(),
		Mac:         mac.DefaultConfig(),
		Pib:         pib.DefaultValues(),
	}
}

// Validate checks the settings that the components do not check themselves.
func (cfg *Config) Validate() error {
	if cfg.Radio.Speed <= 0 {
		return errors.Errorf("speed %v must be positive", cfg.Radio.Speed)
	}
	if tp := pcap.ParseFrameTypeStr(cfg.Pcap); tp == pcap.FrameTypeUnknown {
		return errors.Errorf("unknown pcap type %q", cfg.Pcap)
	}
	if cfg.Mac.RxLookahead < 0 || cfg.TaskBacklog < 0 {
		return errors.Errorf("negative queue size in %+v", cfg.Mac)
	}
	return cfg.Pib.Validate()
}

// LoadConfig decodes data over the defaults.
func LoadConfig(data []byte, format Format) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	switch format {
	case FormatToml:
		_, err = toml.Decode(string(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "parse simulation config")
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML or TOML file and applies its PIB profile, if any.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data, FormatOf(path))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if cfg.PibProfile != "" {
		profile := cfg.PibProfile
		if !filepath.IsAbs(profile) {
			profile = filepath.Join(filepath.Dir(path), profile)
		}
		if cfg.Pib, err = pib.LoadProfileFile(profile); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// Encode writes cfg in the given format.
func (cfg *Config) Encode(format Format) ([]byte, error) {
	if format == FormatToml {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}
