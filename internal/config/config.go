package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all user-facing configuration for durian-map.
type Config struct {
	Data        DataConfig        `toml:"data"`
	Server      ServerConfig      `toml:"server"`
	Backend     BackendConfig     `toml:"backend"`
	Routing     RoutingConfig     `toml:"routing"`
	Geolocation GeolocationConfig `toml:"geolocation"`
	View        ViewConfig        `toml:"view"`
	Log         LogConfig         `toml:"log"`
}

type DataConfig struct {
	Dir    string `toml:"dir"`
	Driver string `toml:"driver"` // "duckdb" or "sqlite"
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Offline serves orchards from the local snapshot instead of the backend.
	Offline bool `toml:"offline"`
	// SessionTTL closes discovery sessions idle for this long.
	SessionTTL Duration `toml:"session_ttl"`
}

type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
	Token   string   `toml:"token"`
}

type RoutingConfig struct {
	BaseURL   string   `toml:"base_url"`
	Profile   string   `toml:"profile"`
	Debounce  Duration `toml:"debounce"`
	RateLimit float64  `toml:"rate_limit"`
	Timeout   Duration `toml:"timeout"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

type GeolocationConfig struct {
	DesktopID   string   `toml:"desktop_id"`
	FallbackLat float64  `toml:"fallback_lat"`
	FallbackLng float64  `toml:"fallback_lng"`
	Timeout     Duration `toml:"timeout"`
}

// HasFallback reports whether a static fallback position is configured.
func (g GeolocationConfig) HasFallback() bool {
	return g.FallbackLat != 0 || g.FallbackLng != 0
}

type ViewConfig struct {
	NarrowBreakpoint int `toml:"narrow_breakpoint"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string ("500ms", "30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with built-in default values.
func Defaults() *Config {
	return &Config{
		Data:   DataConfig{Dir: "data", Driver: "duckdb"},
		Server: ServerConfig{Host: "localhost", Port: 8080, SessionTTL: Duration{30 * time.Minute}},
		Backend: BackendConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: Duration{30 * time.Second},
		},
		Routing: RoutingConfig{
			BaseURL:   "https://router.project-osrm.org",
			Profile:   "driving",
			Debounce:  Duration{500 * time.Millisecond},
			RateLimit: 1.0,
			Timeout:   Duration{15 * time.Second},
			CacheTTL:  Duration{10 * time.Minute},
		},
		Geolocation: GeolocationConfig{
			DesktopID: "durian-map.desktop",
			Timeout:   Duration{10 * time.Second},
		},
		View: ViewConfig{NarrowBreakpoint: 1024},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads a TOML config file. If the file does not exist, built-in
// defaults are returned without error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
