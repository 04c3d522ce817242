package clverify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"clverify/issuerkey"
	"clverify/verifier"
)

func pathIssuerKeys(b *backend) []*framework.Path {
	keys := &issuerKeyStore{b: b}

	return []*framework.Path{
		{
			Pattern: issuerKeysPath + "/?$",

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.ListOperation: &framework.PathOperation{
					Callback: b.handleList(issuerKeysPath),
					Summary:  "List the registered issuer keys.",
				},
			},
		},
		{
			Pattern: issuerKeysPath + "/" + framework.GenericNameRegex("issuer_key_id"),

			Fields: map[string]*framework.FieldSchema{
				"issuer_key_id": {
					Type:        framework.TypeString,
					Description: "Identifier the key is registered and referenced under.",
					Required:    true,
				},
				issuerkey.FieldN: {
					Type:        framework.TypeString,
					Description: "RSA modulus, decimal (or base58 over the decimal digits).",
				},
				issuerkey.FieldS: {
					Type:        framework.TypeString,
					Description: "Generator S.",
				},
				issuerkey.FieldZ: {
					Type:        framework.TypeString,
					Description: "Generator Z.",
				},
				issuerkey.FieldR: {
					Type:        framework.TypeMap,
					Description: `Attribute generators, keyed by attribute name. "0" is the master secret.`,
				},
				issuerkey.FieldMasterSecretRandom: {
					Type:        framework.TypeString,
					Description: `Master secret generator, used when R has no "0" entry.`,
				},
				"base58": {
					Type:        framework.TypeBool,
					Description: "Decode string fields as base58. Defaults to the base58_keys setting.",
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.writeIssuerKey(keys),
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.writeIssuerKey(keys),
					Summary:  "Register or replace an issuer public key.",
				},
				logical.ReadOperation: &framework.PathOperation{
					Callback: b.readIssuerKey(keys),
					Summary:  "Read an issuer public key in canonical form.",
				},
				logical.DeleteOperation: &framework.PathOperation{
					Callback: b.deleteIssuerKey(keys),
					Summary:  "Remove an issuer public key.",
				},
			},

			HelpSynopsis: "Manage the issuer public keys proofs are verified against.",
		},
	}
}

func (b *backend) writeIssuerKey(keys *issuerKeyStore) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
		id := data.Get("issuer_key_id").(string)
		b.Logger().Info("Invoked: Issuer key import", "issuer_key_id", id)

		var dec issuerkey.Decoder
		useBase58 := b.currentConfig().Base58Keys
		if v, ok := data.GetOk("base58"); ok {
			useBase58 = v.(bool)
		}
		if useBase58 {
			dec = issuerkey.Base58Decoder
		}

		// the raw request keeps numbers as numbers, so only strings go
		// through the decoder
		pk, err := issuerkey.FromMap(id, data.Raw, dec)
		if err != nil {
			return logical.ErrorResponse("invalid issuer key: %s", err), nil
		}
		pk = pk.Canonicalize()

		if err := keys.store(ctx, pk); err != nil {
			return nil, errwrap.Wrapf("failed to import the issuer key: {{err}}", err)
		}

		return &logical.Response{
			Data: wireData(pk.ToWireWithMasterSecret()),
		}, nil
	}
}

func (b *backend) readIssuerKey(keys *issuerKeyStore) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
		id := data.Get("issuer_key_id").(string)

		pk, err := keys.FetchIssuerKey(ctx, id)
		if errors.Is(err, verifier.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &logical.Response{
			Data: wireData(pk.ToWireWithMasterSecret()),
		}, nil
	}
}

func (b *backend) deleteIssuerKey(keys *issuerKeyStore) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
		id := data.Get("issuer_key_id").(string)

		defs, err := b.credDefsUsing(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(defs) > 0 {
			return logical.ErrorResponse(fmt.Sprintf("issuer key %s is still used by credential definitions %v", id, defs)), nil
		}

		if err := keys.delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func wireData(w issuerkey.Wire) map[string]interface{} {
	r := make(map[string]interface{}, len(w.R))
	for name, v := range w.R {
		r[name] = v
	}
	return map[string]interface{}{
		"id":                              w.ID,
		issuerkey.FieldN:                  w.N,
		issuerkey.FieldS:                  w.S,
		issuerkey.FieldZ:                  w.Z,
		issuerkey.FieldR:                  r,
		issuerkey.FieldMasterSecretRandom: w.MasterSecretRandom,
	}
}
