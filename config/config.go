// Package config loads the domain manifest: which driver domains to start,
// with what identity and parameters, and how to log.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
)

// Manifest kinds.
const (
	KindBlk       = "blk"
	KindRtc       = "rtc"
	KindShadowBlk = "shadow-blk"
)

// Manifest describes the domains to load, in load order.
type Manifest struct {
	Log     LogConfig      `toml:"log"`
	Domains []DomainConfig `toml:"domain"`

	// MemoryLimitPages is the default backing memory cap for block domains
	// that do not set their own. 0 means no cap.
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level       string `toml:"level" env:"FAULTDOMAIN_LOG_LEVEL"`
	Development bool   `toml:"development" env:"FAULTDOMAIN_LOG_DEVELOPMENT"`
}

// DomainConfig is one [[domain]] table.
type DomainConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`

	// Image is a file seeding a block domain. Relative paths are resolved
	// against the manifest's directory.
	Image  string `toml:"image"`
	Target string `toml:"target"`

	ID               uint64 `toml:"id"`
	RegionStart      uint64 `toml:"region_start"`
	RegionEnd        uint64 `toml:"region_end"`
	Sectors          uint32 `toml:"sectors"`
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

// DomainKind maps the manifest kind to a capability kind.
func (d DomainConfig) DomainKind() domain.Kind {
	switch d.Kind {
	case KindBlk:
		return domain.KindBlk
	case KindRtc:
		return domain.KindRtc
	case KindShadowBlk:
		return domain.KindShadowBlk
	}
	return domain.KindInvalid
}

// Region returns the RTC register range.
func (d DomainConfig) Region() faultdomain.AddressRange {
	return faultdomain.AddressRange{Start: uintptr(d.RegionStart), End: uintptr(d.RegionEnd)}
}

// Domain returns the domain named name.
func (m *Manifest) Domain(name string) (DomainConfig, bool) {
	for _, d := range m.Domains {
		if d.Name == name {
			return d, true
		}
	}
	return DomainConfig{}, false
}

// Default returns the built-in manifest: a ramdisk, an RTC and a shadow
// in front of the ramdisk.
func Default() Manifest {
	return Manifest{
		Log: LogConfig{Level: "info"},
		Domains: []DomainConfig{
			{Name: "disk0", Kind: KindBlk, ID: 1, Sectors: 2048},
			{Name: "rtc0", Kind: KindRtc, ID: 2, RegionStart: 0x101000, RegionEnd: 0x102000},
			{Name: "shadow0", Kind: KindShadowBlk, ID: 3, Target: "disk0"},
		},
	}
}

// Load reads a manifest file. A file without [[domain]] tables keeps the
// default domains; a file without [log] keeps the default logging.
func Load(path string) (Manifest, error) {
	var raw Manifest
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Manifest{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load manifest "+path)
	}
	m, err := merge(raw, meta)
	if err != nil {
		return Manifest{}, err
	}
	dir := filepath.Dir(path)
	for i := range m.Domains {
		if img := m.Domains[i].Image; img != "" && !filepath.IsAbs(img) {
			m.Domains[i].Image = filepath.Join(dir, img)
		}
	}
	return m, nil
}

// Decode parses manifest text with the same rules as Load.
func Decode(data string) (Manifest, error) {
	var raw Manifest
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Manifest{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode manifest")
	}
	return merge(raw, meta)
}

func merge(raw Manifest, meta toml.MetaData) (Manifest, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Manifest{}, errors.InvalidInput(errors.PhaseConfig,
			"unknown manifest keys: "+strings.Join(keys, ", "))
	}

	m := Default()
	if meta.IsDefined("log", "level") {
		m.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "development") {
		m.Log.Development = raw.Log.Development
	}
	if meta.IsDefined("memory_limit_pages") {
		m.MemoryLimitPages = raw.MemoryLimitPages
	}
	if meta.IsDefined("domain") {
		m.Domains = raw.Domains
	}
	for i := range m.Domains {
		m.Domains[i].Name = strings.TrimSpace(m.Domains[i].Name)
		m.Domains[i].Kind = strings.ToLower(strings.TrimSpace(m.Domains[i].Kind))
	}
	return m, nil
}

type overrides struct {
	Log              LogConfig
	MemoryLimitPages uint32 `env:"FAULTDOMAIN_MEMORY_LIMIT_PAGES"`
}

// ApplyEnv overrides manifest settings from FAULTDOMAIN_* environment
// variables. Unset variables leave the manifest unchanged.
func ApplyEnv(m *Manifest) error {
	o := overrides{Log: m.Log, MemoryLimitPages: m.MemoryLimitPages}
	if err := env.Parse(&o); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse env")
	}
	m.Log = o.Log
	m.MemoryLimitPages = o.MemoryLimitPages
	return nil
}

// EffectiveMemoryLimit returns d's memory cap, falling back to the
// manifest-wide default.
func (m *Manifest) EffectiveMemoryLimit(d DomainConfig) uint32 {
	if d.MemoryLimitPages > 0 {
		return d.MemoryLimitPages
	}
	return m.MemoryLimitPages
}

// Validate checks the manifest for problems that would stop Load.
func (m *Manifest) Validate() error {
	if _, err := zapcore.ParseLevel(m.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	names := make(map[string]DomainConfig, len(m.Domains))
	ids := make(map[uint64]string, len(m.Domains))
	for i, d := range m.Domains {
		if d.Name == "" {
			return invalid("domain #%d has no name", i)
		}
		if _, dup := names[d.Name]; dup {
			return invalid("duplicate domain name %q", d.Name)
		}
		if d.ID == 0 {
			return invalid("domain %q: id must be non-zero", d.Name)
		}
		if other, dup := ids[d.ID]; dup {
			return invalid("domain %q: id %d already used by %q", d.Name, d.ID, other)
		}

		switch d.Kind {
		case KindBlk:
			if d.Sectors == 0 {
				return invalid("domain %q: sectors must be non-zero", d.Name)
			}
		case KindRtc:
			if d.RegionEnd <= d.RegionStart {
				return invalid("domain %q: empty region [%#x, %#x)", d.Name, d.RegionStart, d.RegionEnd)
			}
		case KindShadowBlk:
			target, ok := names[d.Target]
			if !ok {
				return invalid("domain %q: target %q must be declared earlier", d.Name, d.Target)
			}
			if target.Kind != KindBlk && target.Kind != KindShadowBlk {
				return invalid("domain %q: target %q is a %s domain", d.Name, d.Target, target.Kind)
			}
		default:
			return invalid("domain %q: unknown kind %q", d.Name, d.Kind)
		}
		if d.Image != "" && d.Kind != KindBlk {
			return invalid("domain %q: image is only valid for %s domains", d.Name, KindBlk)
		}

		names[d.Name] = d
		ids[d.ID] = d.Name
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
}

// ZapConfig returns the zap configuration selected by l.
func (l LogConfig) ZapConfig() (zap.Config, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zap.Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg, nil
}
