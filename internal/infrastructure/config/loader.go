package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Loader loads netcode configuration from JSON files using fs.FS interface
type Loader struct {
	fsys     fs.FS
	basePath string
}

// NewLoader creates a new config loader from filesystem path
func NewLoader(basePath string) *Loader {
	return &Loader{
		fsys:     os.DirFS(basePath),
		basePath: basePath,
	}
}

// NewFSLoader creates a new config loader from fs.FS
func NewFSLoader(fsys fs.FS, basePath string) *Loader {
	return &Loader{
		fsys:     fsys,
		basePath: basePath,
	}
}

// LoadNetcode loads netcode.json as written, without overrides
func (l *Loader) LoadNetcode() (*NetcodeConfig, error) {
	data, err := fs.ReadFile(l.fsys, "netcode.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read netcode.json: %w", err)
	}

	var cfg NetcodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse netcode.json: %w", err)
	}

	return &cfg, nil
}

// Load reads netcode.json, applies FS_* environment overrides and validates
// the result
func (l *Loader) Load() (*NetcodeConfig, error) {
	cfg, err := l.LoadNetcode()
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any FS_* variables that are set
func ApplyEnv(cfg *NetcodeConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once
func (c *NetcodeConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(slices.Contains([]string{ModeDelay, ModeRollback}, c.Mode), "mode %q, want %s or %s", c.Mode, ModeDelay, ModeRollback)
	check(c.TickRate > 0 && c.TickRate <= 240, "tickRate %d, want 1..240", c.TickRate)
	check(c.RenderDelay >= 0, "renderDelay %d is negative", c.RenderDelay)
	check(c.Wire.MaxBufferBytes > 0, "wire.maxBufferBytes %d, want > 0", c.Wire.MaxBufferBytes)
	check(c.Wire.MaxMalformed >= 0, "wire.maxMalformed %d is negative", c.Wire.MaxMalformed)
	if c.BadConnection.Enabled {
		check(c.BadConnection.Player == 1 || c.BadConnection.Player == 2, "badConnection.player %d, want 1 or 2", c.BadConnection.Player)
	}
	check(c.BadConnection.MaxDelayMs >= 0, "badConnection.maxDelayMs %d is negative", c.BadConnection.MaxDelayMs)
	check(slices.Contains([]string{DesyncDrop, DesyncHold}, c.Desync.Policy), "desync.policy %q, want %s or %s", c.Desync.Policy, DesyncDrop, DesyncHold)
	if c.Desync.Policy == DesyncHold {
		check(c.Desync.MaxHeld > 0, "desync.maxHeld %d, want > 0", c.Desync.MaxHeld)
	}
	check(c.Display.ScreenWidth > 0 && c.Display.ScreenHeight > 0, "display %dx%d", c.Display.ScreenWidth, c.Display.ScreenHeight)
	check(c.Display.Scale > 0, "display.scale %d, want > 0", c.Display.Scale)

	return errors.Join(errs...)
}
