// Package client implements the agent-side SDK: an HTTP transport to the
// Authority plus a high-level Agent type composing identity, lease,
// state-chain, and proof construction into the operations an embedder
// actually calls.
package client

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-sourced tunables for reaching an Authority.
type Config struct {
	AuthorityURL string
	APIKey       string
	LeaseTTL     time.Duration
	AutoRenew    bool
}

// DefaultAuthorityURL is used when SIGAID_AUTHORITY_URL is unset.
const DefaultAuthorityURL = "https://api.sigaid.com"

// DefaultLeaseTTL is used when SIGAID_LEASE_TTL is unset.
const DefaultLeaseTTL = 60 * time.Second

// ConfigFromEnv reads SIGAID_AUTHORITY_URL, SIGAID_API_KEY,
// SIGAID_LEASE_TTL (seconds), and SIGAID_AUTO_RENEW.
func ConfigFromEnv() Config {
	cfg := Config{
		AuthorityURL: DefaultAuthorityURL,
		LeaseTTL:     DefaultLeaseTTL,
		AutoRenew:    true,
	}
	if v := envString("SIGAID_AUTHORITY_URL"); v != "" {
		cfg.AuthorityURL = v
	}
	cfg.APIKey = envString("SIGAID_API_KEY")
	if v := envString("SIGAID_LEASE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.LeaseTTL = time.Duration(secs) * time.Second
		}
	}
	cfg.AutoRenew = envBoolWithFallback("SIGAID_AUTO_RENEW", cfg.AutoRenew)
	return cfg
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
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
