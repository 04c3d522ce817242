package clverify

import (
	"context"
	"time"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"
)

func pathConfig(b *backend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: configPath,

			Fields: map[string]*framework.FieldSchema{
				"nonce_ttl": {
					Type:        framework.TypeDurationSecond,
					Description: "How long an issued nonce stays open. 0 keeps nonces until they are consumed.",
				},
				"key_cache_size": {
					Type:        framework.TypeInt,
					Description: "Number of issuer keys kept decoded in memory.",
					Default:     defaultCacheSize,
				},
				"base58_keys": {
					Type:        framework.TypeBool,
					Description: "Decode imported issuer key fields as base58 unless the request says otherwise.",
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.ReadOperation: &framework.PathOperation{
					Callback: b.readConfig,
					Summary:  "Read the verifier configuration.",
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.writeConfig,
					Summary:  "Update the verifier configuration. Open nonces are dropped.",
				},
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.writeConfig,
				},
			},

			HelpSynopsis: "Configure nonce lifetime, key caching and key decoding.",
		},
	}
}

func (b *backend) readConfig(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	cfg := b.currentConfig()
	return &logical.Response{
		Data: map[string]interface{}{
			"nonce_ttl":      int64(cfg.NonceTTL / time.Second),
			"key_cache_size": cfg.KeyCacheSize,
			"base58_keys":    cfg.Base58Keys,
		},
	}, nil
}

func (b *backend) writeConfig(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	b.Logger().Info("Invoked: Configuration")

	cur := b.currentConfig()
	cfg := &pluginConfig{
		NonceTTL:     cur.NonceTTL,
		KeyCacheSize: cur.KeyCacheSize,
		Base58Keys:   cur.Base58Keys,
	}
	if v, ok := data.GetOk("nonce_ttl"); ok {
		cfg.NonceTTL = time.Duration(v.(int)) * time.Second
	}
	if v, ok := data.GetOk("key_cache_size"); ok {
		cfg.KeyCacheSize = v.(int)
	}
	if v, ok := data.GetOk("base58_keys"); ok {
		cfg.Base58Keys = v.(bool)
	}

	if cfg.NonceTTL < 0 {
		return logical.ErrorResponse("nonce_ttl must not be negative"), nil
	}
	if cfg.KeyCacheSize <= 0 {
		return logical.ErrorResponse("key_cache_size must be positive"), nil
	}

	if err := b.dataStore(ctx, cfg, configPath); err != nil {
		return nil, errwrap.Wrapf("failed to save configuration: {{err}}", err)
	}
	if err := b.apply(cfg); err != nil {
		return nil, err
	}
	return b.readConfig(ctx, req, data)
}
