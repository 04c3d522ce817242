package clverify

import (
	"time"
)

const (
	verifierID = "clverify"

	configPath        = "config"
	issuerKeysPath    = "issuerkeys"
	credDefsPath      = "creddefs"
	noncePath         = "nonce"
	verifyPath        = "verify"
	verifyPredPath    = "verifypredicate"
	catalogPath       = "catalog"
	metricsPath       = "metrics"
	defaultCacheSize  = 128
	notValidEquality  = "credential not valid"
	notValidPredicate = "predicate not valid"
	malformedMessage  = "malformed proof or key material: %s"
)

type pluginConfig struct {
	NonceTTL     time.Duration `json:"nonce_ttl"`
	KeyCacheSize int           `json:"key_cache_size"`
	Base58Keys   bool          `json:"base58_keys"`
}

func defaultConfig() *pluginConfig {
	return &pluginConfig{KeyCacheSize: defaultCacheSize}
}

type verifyResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func (r verifyResult) data() map[string]interface{} {
	d := map[string]interface{}{"valid": r.Valid}
	if r.Message != "" {
		d["message"] = r.Message
	}
	return d
}
