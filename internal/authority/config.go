package authority

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the Authority process needs at startup. It is
// loaded from an optional YAML file and then overridden field-by-field from
// environment variables, matching the precedence order file < env.
type Config struct {
	ListenAddr     string        `yaml:"listenAddr"`
	StateDir       string        `yaml:"stateDir"`
	LeaseTTLMin    time.Duration `yaml:"leaseTtlMin"`
	LeaseTTLMax    time.Duration `yaml:"leaseTtlMax"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	KeystorePath   string        `yaml:"keystorePath"`
	KeystoreSecret string        `yaml:"-"`
	RequireAPIKey  bool          `yaml:"requireApiKey"`
	APIKeys        []string      `yaml:"apiKeys"`
}

// DefaultConfig returns the Authority's out-of-the-box tuning: a 30s-to-1h
// lease TTL band and a 2 minute clock-skew and nonce-replay window.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "127.0.0.1:8443",
		StateDir:      "./data/authority",
		LeaseTTLMin:   30 * time.Second,
		LeaseTTLMax:   time.Hour,
		ClockSkew:     2 * time.Minute,
		KeystorePath:  "./data/authority/keystore.bin",
		RequireAPIKey: false,
	}
}

// LoadConfig reads configPath if non-empty and it exists, merges it over the
// defaults, then applies environment overrides. A missing or unreadable
// config file is not an error: the Authority falls back to defaults plus
// whatever the environment supplies.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			var parsed Config
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return cfg, fmt.Errorf("authority: parsing config %s: %w", configPath, err)
			}
			mergeConfig(&cfg, parsed)
		}
	}

	applyEnvOverrides(&cfg)

	cfg.KeystoreSecret = strings.TrimSpace(os.Getenv("SIGAID_KEYSTORE_SECRET"))

	if cfg.LeaseTTLMin <= 0 || cfg.LeaseTTLMax < cfg.LeaseTTLMin {
		return cfg, fmt.Errorf("authority: invalid lease TTL band [%s, %s]", cfg.LeaseTTLMin, cfg.LeaseTTLMax)
	}
	return cfg, nil
}

func mergeConfig(dst *Config, src Config) {
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.StateDir != "" {
		dst.StateDir = src.StateDir
	}
	if src.LeaseTTLMin != 0 {
		dst.LeaseTTLMin = src.LeaseTTLMin
	}
	if src.LeaseTTLMax != 0 {
		dst.LeaseTTLMax = src.LeaseTTLMax
	}
	if src.ClockSkew != 0 {
		dst.ClockSkew = src.ClockSkew
	}
	if src.KeystorePath != "" {
		dst.KeystorePath = src.KeystorePath
	}
	dst.RequireAPIKey = dst.RequireAPIKey || src.RequireAPIKey
	if len(src.APIKeys) > 0 {
		dst.APIKeys = src.APIKeys
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := envString("SIGAID_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := envString("SIGAID_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := envDuration("SIGAID_LEASE_TTL_MIN"); v > 0 {
		cfg.LeaseTTLMin = v
	}
	if v := envDuration("SIGAID_LEASE_TTL_MAX"); v > 0 {
		cfg.LeaseTTLMax = v
	}
	if v := envDuration("SIGAID_CLOCK_SKEW"); v > 0 {
		cfg.ClockSkew = v
	}
	if v := envString("SIGAID_KEYSTORE_PATH"); v != "" {
		cfg.KeystorePath = v
	}
	if v := envCSV("SIGAID_API_KEYS"); v != nil {
		cfg.APIKeys = v
		cfg.RequireAPIKey = true
	}
	cfg.RequireAPIKey = envBoolWithFallback("SIGAID_REQUIRE_API_KEY", cfg.RequireAPIKey)
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envCSV(key string) []string {
	raw := envString(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBoolWithFallback(key string, fallback bool) bool {
	raw := strings.ToLower(envString(key))
	switch raw {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string) time.Duration {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
