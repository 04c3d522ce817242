package clverify

import (
	"context"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hashicorp/vault/sdk/logical"
	"github.com/stretchr/testify/require"

	"clverify/internal/testprover"
)

func TestIssuerKeyLifecycle(t *testing.T) {
	b, storage := getBackend(t)

	resp := request(t, b, storage, logical.UpdateOperation, "issuerkeys/gvt", map[string]interface{}{
		"N": "3233",
		"S": "3304", // 71 + N
		"Z": 41,
		"R": map[string]interface{}{"attr1": "7"},
		"masterSecretRandom": "5",
	})
	require.False(t, resp.IsError(), "%v", resp.Error())
	require.Equal(t, "71", resp.Data["S"])
	require.Equal(t, "41", resp.Data["Z"])
	require.Equal(t, map[string]interface{}{"0": "5", "attr1": "7"}, resp.Data["R"])
	require.Equal(t, "5", resp.Data["masterSecretRandom"])

	resp = request(t, b, storage, logical.ReadOperation, "issuerkeys/gvt", nil)
	require.Equal(t, "3233", resp.Data["N"])
	require.Equal(t, "gvt", resp.Data["id"])

	resp = request(t, b, storage, logical.ListOperation, "issuerkeys/", nil)
	require.Equal(t, []string{"gvt"}, resp.Data["keys"])

	request(t, b, storage, logical.DeleteOperation, "issuerkeys/gvt", nil)
	resp = request(t, b, storage, logical.ReadOperation, "issuerkeys/gvt", nil)
	require.Nil(t, resp)
}

func TestIssuerKeyRejectsBadMaterial(t *testing.T) {
	b, storage := getBackend(t)

	for name, data := range map[string]map[string]interface{}{
		"not a number":     {"N": "abc", "S": "71", "Z": "41", "R": map[string]interface{}{"0": "5"}},
		"no master secret": {"N": "3233", "S": "71", "Z": "41", "R": map[string]interface{}{"attr1": "7"}},
		"unit modulus":     {"N": "1", "S": "71", "Z": "41", "R": map[string]interface{}{"0": "5"}},
		"missing Z":        {"N": "3233", "S": "71", "R": map[string]interface{}{"0": "5"}},
	} {
		t.Run(name, func(t *testing.T) {
			resp := request(t, b, storage, logical.UpdateOperation, "issuerkeys/bad", data)
			require.True(t, resp.IsError())
		})
	}

	resp := request(t, b, storage, logical.ReadOperation, "issuerkeys/bad", nil)
	require.Nil(t, resp)
}

func TestIssuerKeyBase58(t *testing.T) {
	b, storage := getBackend(t)
	enc := func(s string) string { return base58.Encode([]byte(s)) }

	data := map[string]interface{}{
		"N":      enc("3233"),
		"S":      enc("71"),
		"Z":      enc("41"),
		"R":      map[string]interface{}{"0": enc("5"), "attr1": enc("7")},
		"base58": true,
	}
	resp := request(t, b, storage, logical.UpdateOperation, "issuerkeys/b58", data)
	require.False(t, resp.IsError(), "%v", resp.Error())
	require.Equal(t, "3233", resp.Data["N"])

	// the configured default applies when the request does not say
	request(t, b, storage, logical.UpdateOperation, "config", map[string]interface{}{"base58_keys": true})
	delete(data, "base58")
	resp = request(t, b, storage, logical.UpdateOperation, "issuerkeys/b58-default", data)
	require.False(t, resp.IsError(), "%v", resp.Error())

	pk, err := (&issuerKeyStore{b: b}).FetchIssuerKey(context.Background(), "b58-default")
	require.NoError(t, err)
	require.True(t, pk.Equal(testprover.Small(t, "b58-default").PK))
}

func TestIssuerKeyCache(t *testing.T) {
	b, storage := getBackend(t)
	registerKey(t, b, storage, "gvt", testprover.Small(t, "gvt"))
	keys := &issuerKeyStore{b: b}

	first, err := keys.FetchIssuerKey(context.Background(), "gvt")
	require.NoError(t, err)
	require.Equal(t, 1, b.cache().Len())

	second, err := keys.FetchIssuerKey(context.Background(), "gvt")
	require.NoError(t, err)
	require.Same(t, first, second)

	// replacing the key invalidates the cached copy
	registerKey(t, b, storage, "gvt", testprover.Wide(t, "gvt"))
	third, err := keys.FetchIssuerKey(context.Background(), "gvt")
	require.NoError(t, err)
	require.NotEqual(t, first.N().String(), third.N().String())
}

func TestIssuerKeyInUseCannotBeDeleted(t *testing.T) {
	b, storage := getBackend(t)
	registerKey(t, b, storage, "gvt", testprover.Small(t, "gvt"))

	resp := request(t, b, storage, logical.UpdateOperation, "creddefs/cd-1", map[string]interface{}{
		"issuer_key_id": "gvt",
		"attr_names":    "attr1",
	})
	require.False(t, resp.IsError(), "%v", resp.Error())

	resp = request(t, b, storage, logical.DeleteOperation, "issuerkeys/gvt", nil)
	require.True(t, resp.IsError())

	request(t, b, storage, logical.DeleteOperation, "creddefs/cd-1", nil)
	resp = request(t, b, storage, logical.DeleteOperation, "issuerkeys/gvt", nil)
	require.Nil(t, resp)
}
