package clverify

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"clverify/proof"
	"clverify/verifier"
)

func pathVerify(b *backend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: verifyPath,

			Fields: map[string]*framework.FieldSchema{
				"issuer_id": {
					Type:        framework.TypeString,
					Description: "Key the proof's e, v and Aprime maps use. Defaults to issuer_key_id.",
				},
				"issuer_key_id": {
					Type:        framework.TypeString,
					Description: "Registered issuer key to verify against. Defaults to the credential definition's key.",
				},
				"cred_def_id": {
					Type:        framework.TypeString,
					Description: "Credential definition the proof is presented for.",
				},
				"nonce": {
					Type:        framework.TypeString,
					Description: "[Required] Decimal nonce the proof was made for.",
					Required:    true,
				},
				"proof": {
					Type:        framework.TypeMap,
					Description: "[Required] The equality proof: c, e, m, v and Aprime.",
					Required:    true,
				},
				"attributes": {
					Type:        framework.TypeMap,
					Description: "[Required] Encoded attribute values by attribute name.",
					Required:    true,
				},
				"revealed_attrs": {
					Type:        framework.TypeCommaStringSlice,
					Description: "Attributes disclosed in clear.",
				},
				"consume_nonce": {
					Type:        framework.TypeBool,
					Description: "Require an open nonce issued by this backend and close it.",
					Default:     true,
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.verify,
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.verify,
					Summary:  "Verify a credential proof.",
				},
			},

			HelpSynopsis: "Verify a CL credential (equality) proof.",
		},
	}
}

func (b *backend) verify(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	b.Logger().Info("Invoked: Verification")

	vreq := verifier.VerifyRequest{
		IssuerID:      data.Get("issuer_id").(string),
		IssuerKeyID:   data.Get("issuer_key_id").(string),
		CredDefID:     data.Get("cred_def_id").(string),
		RevealedAttrs: data.Get("revealed_attrs").([]string),
	}

	nonce, err := parseNonce(data.Get("nonce").(string))
	if err != nil {
		return b.failure(verifyPath, err)
	}
	vreq.Nonce = nonce

	var attrs map[string]*big.Int
	if err := proof.Decode(data.Get("attributes"), &attrs); err != nil {
		return b.failure(verifyPath, errwrap.Wrapf("attributes: {{err}}", err))
	}

	if vreq.CredDefID != "" {
		def, err := (&credDefStore{b: b}).FetchCredDef(ctx, vreq.CredDefID)
		if errors.Is(err, verifier.ErrNotFound) {
			return b.failure(verifyPath, errwrap.Wrapf(fmt.Sprintf("credential definition %s: {{err}}", vreq.CredDefID), verifier.ErrUnknownCredDef))
		}
		if err != nil {
			return nil, err
		}
		if vreq.IssuerKeyID == "" {
			vreq.IssuerKeyID = def.IssuerKeyID
		}
		if vreq.IssuerKeyID != def.IssuerKeyID {
			return logical.ErrorResponse("credential definition %s is signed with issuer key %s, not %s", def.ID, def.IssuerKeyID, vreq.IssuerKeyID), nil
		}
		for name := range attrs {
			if !sliceContains(def.AttrNames, name) {
				return logical.ErrorResponse("attribute %s is not part of credential definition %s", name, def.ID), nil
			}
		}
	}
	if vreq.IssuerKeyID == "" {
		return logical.ErrorResponse("issuer_key_id or cred_def_id is required"), nil
	}

	var p proof.EqualitySubProof
	if err := proof.Decode(data.Get("proof"), &p); err != nil {
		return b.failure(verifyPath, errwrap.Wrapf("proof: {{err}}", err))
	}
	vreq.Proof = &p

	proofID := vreq.IssuerID
	if proofID == "" {
		proofID = vreq.IssuerKeyID
	}
	vreq.Attrs = proof.EncodedAttributes{proofID: attrs}

	v := b.currentVerifier()
	if resp := b.consumeNonce(v, nonce, data.Get("consume_nonce").(bool)); resp != nil {
		return resp, nil
	}

	ok, err := v.Verify(ctx, vreq)
	if err != nil {
		return b.failure(verifyPath, err)
	}

	result := verifyResult{Valid: ok}
	if !ok {
		result.Message = notValidEquality
	}
	return &logical.Response{Data: result.data()}, nil
}

// consumeNonce closes the nonce when asked to and returns an error
// response if it was not open.
func (b *backend) consumeNonce(v *verifier.Verifier, nonce *big.Int, consume bool) *logical.Response {
	if !consume {
		return nil
	}
	interaction, ok := v.ConsumeNonce(nonce)
	if !ok {
		return logical.ErrorResponse("nonce %s was not issued by this verifier, has expired or was already used", nonce)
	}
	b.Logger().Debug("nonce consumed", "interaction_id", interaction)
	return nil
}

func parseNonce(s string) (*big.Int, error) {
	if s == "" {
		return nil, errwrap.Wrapf("nonce is required: {{err}}", verifier.ErrMalformedProof)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, errwrap.Wrapf(fmt.Sprintf("nonce %q is not a non-negative decimal integer: {{err}}", s), verifier.ErrMalformedProof)
	}
	return n, nil
}
