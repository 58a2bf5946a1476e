package config

import "time"

// Synchronization modes announced in the handshake
const (
	ModeDelay    = "delay"
	ModeRollback = "rollback"
)

// Desync policies for rollback input that arrives early
const (
	DesyncDrop = "drop"
	DesyncHold = "hold"
)

// NetcodeConfig is the root config for netcode.json. Every field can be
// overridden from the environment.
type NetcodeConfig struct {
	Mode          string              `json:"mode"        env:"FS_MODE"`
	TickRate      int                 `json:"tickRate"    env:"FS_TICK_RATE"`
	RenderDelay   int                 `json:"renderDelay" env:"FS_RENDER_DELAY"` // rollback only, 0 shows the newest frame
	Wire          WireConfig          `json:"wire"`
	BadConnection BadConnectionConfig `json:"badConnection"`
	Desync        DesyncConfig        `json:"desync"`
	Display       DisplayConfig       `json:"display"`
	Metrics       MetricsConfig       `json:"metrics"`
	MatchLog      MatchLogConfig      `json:"matchLog"`
}

// WireConfig bounds the inbound message stream
type WireConfig struct {
	MaxBufferBytes int `json:"maxBufferBytes" env:"FS_WIRE_MAX_BUFFER_BYTES"`
	MaxMalformed   int `json:"maxMalformed"   env:"FS_WIRE_MAX_MALFORMED"`
}

// BadConnectionConfig delays one player's sends to simulate a poor link
type BadConnectionConfig struct {
	Enabled    bool `json:"enabled"    env:"FS_BAD_CONNECTION"`
	Player     int  `json:"player"     env:"FS_BAD_CONNECTION_PLAYER"`
	MaxDelayMs int  `json:"maxDelayMs" env:"FS_BAD_CONNECTION_MAX_DELAY_MS"` // 0 picks the mode's default
}

// MaxDelay returns the configured delay bound, or the mode's default:
// 100ms for delay, 330ms for rollback
func (c BadConnectionConfig) MaxDelay(mode string) time.Duration {
	if c.MaxDelayMs > 0 {
		return time.Duration(c.MaxDelayMs) * time.Millisecond
	}
	if mode == ModeRollback {
		return 330 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// DesyncConfig picks what rollback does with input from a peer that is ahead
type DesyncConfig struct {
	Policy  string `json:"policy"  env:"FS_DESYNC_POLICY"`
	MaxHeld int    `json:"maxHeld" env:"FS_DESYNC_MAX_HELD"`
}

type DisplayConfig struct {
	ScreenWidth  int `json:"screenWidth"  env:"FS_SCREEN_WIDTH"`
	ScreenHeight int `json:"screenHeight" env:"FS_SCREEN_HEIGHT"`
	Scale        int `json:"scale"        env:"FS_SCALE"`
}

type MetricsConfig struct {
	Addr string `json:"addr" env:"FS_METRICS_ADDR"` // empty disables /metrics
}

type MatchLogConfig struct {
	Path string `json:"path" env:"FS_MATCH_LOG"` // empty disables the match log
}
