package clverify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	"github.com/hashicorp/vault/sdk/logical"
	"github.com/stretchr/testify/require"

	"clverify/internal/testprover"
	"clverify/issuerkey"
)

func getBackend(t *testing.T) (*backend, logical.Storage) {
	t.Helper()
	return getBackendWithStorage(t, &logical.InmemStorage{})
}

func getBackendWithStorage(t *testing.T, storage logical.Storage) (*backend, logical.Storage) {
	t.Helper()
	ctx := context.Background()

	config := logical.TestBackendConfig()
	config.StorageView = storage

	b, err := Backend(ctx, config)
	require.NoError(t, err)
	require.NoError(t, b.Setup(ctx, config))
	require.NoError(t, b.Initialize(ctx, &logical.InitializationRequest{Storage: storage}))
	return b, storage
}

func request(t *testing.T, b *backend, storage logical.Storage, op logical.Operation, path string, data map[string]interface{}) *logical.Response {
	t.Helper()
	resp, err := b.HandleRequest(context.Background(), &logical.Request{
		Operation: op,
		Path:      path,
		Storage:   storage,
		Data:      data,
	})
	require.NoError(t, err)
	return resp
}

// toMap round-trips v through JSON the way a request body arrives.
func toMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, jsonutil.DecodeJSON(buf, &out))
	return out
}

func registerKey(t *testing.T, b *backend, storage logical.Storage, id string, is testprover.Issuer) {
	t.Helper()
	w := is.PK.ToWire()
	r := map[string]interface{}{}
	for name, v := range w.R {
		r[name] = v
	}
	resp := request(t, b, storage, logical.UpdateOperation, "issuerkeys/"+id, map[string]interface{}{
		issuerkey.FieldN: w.N,
		issuerkey.FieldS: w.S,
		issuerkey.FieldZ: w.Z,
		issuerkey.FieldR: r,
	})
	require.False(t, resp.IsError(), "%v", resp.Error())
}

func TestBackendDefaults(t *testing.T) {
	b, storage := getBackend(t)

	resp := request(t, b, storage, logical.ReadOperation, "config", nil)
	require.Equal(t, int64(0), resp.Data["nonce_ttl"])
	require.Equal(t, defaultCacheSize, resp.Data["key_cache_size"])
	require.Equal(t, false, resp.Data["base58_keys"])

	resp = request(t, b, storage, logical.ReadOperation, "catalog", nil)
	require.Equal(t, []string{}, resp.Data["issuerkeys"])
	require.Equal(t, []string{}, resp.Data["creddefs"])
	require.Equal(t, 0, resp.Data["open_interactions"])
}

func TestConfigPersistsAcrossInitialization(t *testing.T) {
	b, storage := getBackend(t)

	resp := request(t, b, storage, logical.UpdateOperation, "config", map[string]interface{}{
		"nonce_ttl":      "90s",
		"key_cache_size": 4,
		"base58_keys":    true,
	})
	require.False(t, resp.IsError())
	require.Equal(t, int64(90), resp.Data["nonce_ttl"])

	resp = request(t, b, storage, logical.UpdateOperation, "config", map[string]interface{}{"key_cache_size": 0})
	require.True(t, resp.IsError())

	restarted, _ := getBackendWithStorage(t, storage)
	cfg := restarted.currentConfig()
	require.Equal(t, 4, cfg.KeyCacheSize)
	require.True(t, cfg.Base58Keys)
	require.Equal(t, int64(90), int64(cfg.NonceTTL.Seconds()))
}

func TestConfigUpdateDropsOpenNonces(t *testing.T) {
	b, storage := getBackend(t)

	request(t, b, storage, logical.UpdateOperation, "nonce/i-1", nil)
	require.Equal(t, 1, b.currentVerifier().OpenInteractions())

	request(t, b, storage, logical.UpdateOperation, "config", map[string]interface{}{"nonce_ttl": 30})
	require.Equal(t, 0, b.currentVerifier().OpenInteractions())
}
