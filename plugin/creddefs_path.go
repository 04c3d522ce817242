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

func pathCredDefs(b *backend) []*framework.Path {
	defs := &credDefStore{b: b}
	keys := &issuerKeyStore{b: b}

	return []*framework.Path{
		{
			Pattern: credDefsPath + "/?$",

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.ListOperation: &framework.PathOperation{
					Callback: b.handleList(credDefsPath),
					Summary:  "List the registered credential definitions.",
				},
			},
		},
		{
			Pattern: credDefsPath + "/" + framework.GenericNameRegex("cred_def_id"),

			Fields: map[string]*framework.FieldSchema{
				"cred_def_id": {
					Type:        framework.TypeString,
					Description: "Identifier of the credential definition.",
					Required:    true,
				},
				"issuer_id": {
					Type:        framework.TypeString,
					Description: "The issuer publishing the definition.",
				},
				"issuer_key_id": {
					Type:        framework.TypeString,
					Description: "The registered issuer key credentials of this definition are signed with.",
					Required:    true,
				},
				"name": {
					Type:        framework.TypeString,
					Description: "Schema name.",
				},
				"version": {
					Type:        framework.TypeString,
					Description: "Schema version.",
				},
				"attr_names": {
					Type:        framework.TypeCommaStringSlice,
					Description: "Attributes the credential certifies. Each needs a generator in the issuer key.",
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.writeCredDef(keys),
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.writeCredDef(keys),
					Summary:  "Register or replace a credential definition.",
				},
				logical.ReadOperation: &framework.PathOperation{
					Callback: b.readCredDef(defs),
					Summary:  "Read a credential definition.",
				},
				logical.DeleteOperation: &framework.PathOperation{
					Callback: b.deleteCredDef,
					Summary:  "Remove a credential definition.",
				},
			},

			HelpSynopsis: "Manage credential definitions.",
		},
	}
}

func (b *backend) writeCredDef(keys *issuerKeyStore) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
		def := &verifier.CredentialDefinition{
			ID:          data.Get("cred_def_id").(string),
			IssuerID:    data.Get("issuer_id").(string),
			IssuerKeyID: data.Get("issuer_key_id").(string),
			Name:        data.Get("name").(string),
			Version:     data.Get("version").(string),
			AttrNames:   data.Get("attr_names").([]string),
		}
		b.Logger().Info("Invoked: Credential definition", "cred_def_id", def.ID, "issuer_key_id", def.IssuerKeyID)

		if def.IssuerKeyID == "" {
			return logical.ErrorResponse("issuer_key_id is required"), nil
		}

		pk, err := keys.FetchIssuerKey(ctx, def.IssuerKeyID)
		if errors.Is(err, verifier.ErrNotFound) {
			return logical.ErrorResponse("issuer key %s is not registered", def.IssuerKeyID), nil
		}
		if err != nil {
			return nil, err
		}

		if missing := missingGenerators(pk, def.AttrNames); len(missing) > 0 {
			return logical.ErrorResponse(fmt.Sprintf("Non-existent attributes for issuer key %s: %v", def.IssuerKeyID, missing)), nil
		}

		if err := b.dataStore(ctx, def, credDefsPath, def.ID); err != nil {
			return nil, errwrap.Wrapf("failed to store the credential definition: {{err}}", err)
		}
		return &logical.Response{Data: credDefData(def)}, nil
	}
}

func (b *backend) readCredDef(defs *credDefStore) framework.OperationFunc {
	return func(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
		def, err := defs.FetchCredDef(ctx, data.Get("cred_def_id").(string))
		if errors.Is(err, verifier.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &logical.Response{Data: credDefData(def)}, nil
	}
}

func (b *backend) deleteCredDef(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	key := b.constructPath([]string{credDefsPath, data.Get("cred_def_id").(string)})
	if err := b.storage.Delete(ctx, key); err != nil {
		return nil, errwrap.Wrapf("failed to delete: {{err}}", err)
	}
	return nil, nil
}

// credDefsUsing lists the credential definitions signed with issuerKeyID.
func (b *backend) credDefsUsing(ctx context.Context, issuerKeyID string) ([]string, error) {
	ids, err := b.getEntries(ctx, []string{credDefsPath})
	if err != nil {
		return nil, errwrap.Wrapf("read failed: {{err}}", err)
	}

	defs := &credDefStore{b: b}
	var using []string
	for _, id := range ids {
		def, err := defs.FetchCredDef(ctx, id)
		if err != nil {
			return nil, err
		}
		if def.IssuerKeyID == issuerKeyID {
			using = append(using, id)
		}
	}
	return using, nil
}

// missingGenerators returns the names without an R entry in pk. The master
// secret name is reserved and always reported.
func missingGenerators(pk *issuerkey.PublicKey, names []string) []string {
	known := pk.AttrNames()
	var missing []string
	for _, name := range names {
		if name == issuerkey.MasterSecretKey || !sliceContains(known, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func credDefData(def *verifier.CredentialDefinition) map[string]interface{} {
	return map[string]interface{}{
		"id":            def.ID,
		"issuer_id":     def.IssuerID,
		"issuer_key_id": def.IssuerKeyID,
		"name":          def.Name,
		"version":       def.Version,
		"attr_names":    def.AttrNames,
	}
}
