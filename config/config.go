// Package config holds the machine layout and session settings of a stub.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
)

const (
	DEFAULT_LISTEN    = "0.0.0.0:9001"
	DEFAULT_BURST     = 4096
	DEFAULT_LOG_LEVEL = "info"

	pageSize = 0x1000
)

type Region struct {
	Name string `toml:"name"`
	Addr uint64 `toml:"addr"`
	Size uint64 `toml:"size"`
	Perm string `toml:"perm"`
}

type Config struct {
	Listen   string   `toml:"listen"`
	Image    string   `toml:"image"`
	Burst    uint64   `toml:"burst"`
	LogLevel string   `toml:"log_level"`
	Regions  []Region `toml:"region"`
}

// Default is a small microcontroller: boot ROM, execute-in-place flash and
// SRAM.
func Default() Config {
	return Config{
		Listen:   DEFAULT_LISTEN,
		Burst:    DEFAULT_BURST,
		LogLevel: DEFAULT_LOG_LEVEL,
		Regions: []Region{
			{Name: "rom", Addr: 0x00000000, Size: 256 * 1024, Perm: "rx"},
			{Name: "xip", Addr: 0x10000000, Size: 8 * 1024 * 1024, Perm: "rx"},
			{Name: "sram", Addr: 0x20000000, Size: 256 * 1024, Perm: "rwx"},
		},
	}
}

// Load reads path from fs. Settings the file leaves out keep their default;
// a file with any region replaces the whole default layout.
func Load(fs afero.Fs, path string) (Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	defer f.Close()

	var file Config
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		perr := &ParseError{Path: path, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return Config{}, perr
	}

	cfg := Default()
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.Image != "" {
		cfg.Image = file.Image
	}
	if file.Burst != 0 {
		cfg.Burst = file.Burst
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if len(file.Regions) > 0 {
		cfg.Regions = file.Regions
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: empty listen address", ErrInvalid)
	}
	if c.Burst == 0 {
		return fmt.Errorf("%w: burst must be positive", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	regions, err := c.MemRegions()
	if err != nil {
		return err
	}
	slices.SortFunc(regions, func(a, b emulator.MemRegion) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	for i := 1; i < len(regions); i++ {
		if regions[i].Addr < regions[i-1].End() {
			return fmt.Errorf("%w: region at %#x overlaps region at %#x", ErrInvalid, regions[i].Addr, regions[i-1].Addr)
		}
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return level, nil
}

// MemRegions converts the layout in file order.
func (c Config) MemRegions() ([]emulator.MemRegion, error) {
	regions := make([]emulator.MemRegion, 0, len(c.Regions))
	for _, r := range c.Regions {
		region, err := r.MemRegion()
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func (r Region) MemRegion() (emulator.MemRegion, error) {
	if r.Size == 0 || debugger.AlignDown(r.Addr, pageSize) != r.Addr || debugger.Align(r.Size, pageSize) != r.Size {
		return emulator.MemRegion{}, fmt.Errorf("%w: region %q at %#x size %#x is not page aligned", ErrInvalid, r.Name, r.Addr, r.Size)
	}
	if r.Addr+r.Size < r.Addr || r.Addr+r.Size > 1<<32 {
		return emulator.MemRegion{}, fmt.Errorf("%w: region %q outside the 32-bit address space", ErrInvalid, r.Name)
	}
	prot, err := emulator.ParseMemProt(r.Perm)
	if err != nil {
		return emulator.MemRegion{}, fmt.Errorf("%w: region %q perm %q", ErrInvalid, r.Name, r.Perm)
	}
	return emulator.MemRegion{Addr: r.Addr, Size: r.Size, Prot: prot}, nil
}
