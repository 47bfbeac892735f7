package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMFTZoneShift = 3 // zone = 1/8 of the volume
	scanSection         = "scan"
)

var ErrUnsupportedFormat = errors.New("unsupported configuration format")

// Config drives a scan. Zero values of FromEntry/ToEntry mean the full table.
type Config struct {
	Workers      int    `yaml:"workers" ini:"workers"`
	FromEntry    uint64 `yaml:"from_entry" ini:"from_entry"`
	ToEntry      uint64 `yaml:"to_entry" ini:"to_entry"`
	MFTZoneShift uint   `yaml:"mft_zone_shift" ini:"mft_zone_shift"`
	ScanMFTZone  bool   `yaml:"scan_mft_zone" ini:"scan_mft_zone"`
	UseMirror    bool   `yaml:"use_mirror" ini:"use_mirror"`
	ProbeReads   bool   `yaml:"probe_reads" ini:"probe_reads"`
	Locale       string `yaml:"locale" ini:"locale"`
	Log          bool   `yaml:"log" ini:"log"`
	LogFile      string `yaml:"log_file" ini:"log_file"`
}

func Default() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		MFTZoneShift: DefaultMFTZoneShift,
		UseMirror:    true,
		ProbeReads:   true,
		Locale:       "utf-8",
	}
}

// Load overlays the file at path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "reading %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", path)
		}
	case ".ini", ".cfg", ".conf":
		file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, IgnoreInlineComment: true}, path)
		if err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", path)
		}
		if err := file.Section(scanSection).MapTo(&cfg); err != nil {
			return cfg, errors.Wrapf(err, "mapping [%s] of %s", scanSection, path)
		}
	default:
		return cfg, errors.Wrap(ErrUnsupportedFormat, path)
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.MFTZoneShift > 16 {
		return errors.Errorf("mft_zone_shift %d leaves no zone", cfg.MFTZoneShift)
	}
	if cfg.ToEntry != 0 && cfg.ToEntry < cfg.FromEntry {
		return errors.Errorf("to_entry %d precedes from_entry %d", cfg.ToEntry, cfg.FromEntry)
	}
	return nil
}
