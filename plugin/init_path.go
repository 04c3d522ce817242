package clverify

import (
	"context"

	"github.com/hashicorp/vault/sdk/logical"
)

// initialize loads the stored configuration, or keeps the defaults when
// none was written yet, and rebuilds the verifier from it.
func (b *backend) initialize(ctx context.Context, req *logical.InitializationRequest) error {
	if req != nil && req.Storage != nil {
		b.storage = req.Storage
	}

	b.Logger().Info("Starting initialization for the CL verifier plugin")

	cfg := defaultConfig()
	found, err := b.dataLoad(ctx, cfg, configPath)
	if err != nil {
		b.Logger().Error("error running initialization", "error", err)
		return err
	}
	if !found {
		b.Logger().Info("no stored configuration, using defaults")
		return nil
	}

	if err := b.apply(cfg); err != nil {
		b.Logger().Error("error applying stored configuration", "error", err)
		return err
	}
	b.Logger().Info("configuration loaded", "nonce_ttl", cfg.NonceTTL, "key_cache_size", cfg.KeyCacheSize)
	return nil
}
