package clverify

import (
	"context"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"

	"clverify/proof"
	"clverify/verifier"
)

func pathVerifyPredicate(b *backend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: verifyPredPath,

			Fields: map[string]*framework.FieldSchema{
				"nonce": {
					Type:        framework.TypeString,
					Description: "[Required] Decimal nonce the proof was made for.",
					Required:    true,
				},
				"proof": {
					Type:        framework.TypeMap,
					Description: "[Required] The predicate proof: equalitySubProof, predicateSubProof, C and CList.",
					Required:    true,
				},
				"attributes": {
					Type:        framework.TypeMap,
					Description: "[Required] Encoded attribute values by issuer key id, then attribute name.",
					Required:    true,
				},
				"revealed_attrs": {
					Type:        framework.TypeCommaStringSlice,
					Description: "Attributes disclosed in clear.",
				},
				"predicate": {
					Type:        framework.TypeMap,
					Description: "Lower bounds by issuer key id, then attribute name.",
				},
				"predicate_expr": {
					Type:        framework.TypeString,
					Description: "Lower bounds as an expression, e.g. `age[gvt] >= 18 AND height[gvt] >= 170`.",
				},
				"consume_nonce": {
					Type:        framework.TypeBool,
					Description: "Require an open nonce issued by this backend and close it.",
					Default:     true,
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.verifyPredicate,
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.verifyPredicate,
					Summary:  "Verify a predicate proof.",
				},
			},

			HelpSynopsis: "Verify a proof that hidden attributes reach lower bounds.",
		},
	}
}

func (b *backend) verifyPredicate(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	b.Logger().Info("Invoked: Predicate verification")

	preq := verifier.PredicateRequest{
		RevealedAttrs: data.Get("revealed_attrs").([]string),
	}

	nonce, err := parseNonce(data.Get("nonce").(string))
	if err != nil {
		return b.failure(verifyPredPath, err)
	}
	preq.Nonce = nonce

	pred, err := predicateFrom(data)
	if err != nil {
		return b.failure(verifyPredPath, err)
	}
	preq.Predicate = pred

	var attrs proof.EncodedAttributes
	if err := proof.Decode(data.Get("attributes"), &attrs); err != nil {
		return b.failure(verifyPredPath, errwrap.Wrapf("attributes: {{err}}", err))
	}
	preq.Attrs = attrs

	var p proof.PredicateProof
	if err := proof.Decode(data.Get("proof"), &p); err != nil {
		return b.failure(verifyPredPath, errwrap.Wrapf("proof: {{err}}", err))
	}
	preq.Proof = &p

	v := b.currentVerifier()
	if resp := b.consumeNonce(v, nonce, data.Get("consume_nonce").(bool)); resp != nil {
		return resp, nil
	}

	ok, err := v.VerifyPredicate(ctx, preq)
	if err != nil {
		return b.failure(verifyPredPath, err)
	}

	result := verifyResult{Valid: ok}
	if !ok {
		result.Message = notValidPredicate
	}
	return &logical.Response{Data: result.data()}, nil
}

// predicateFrom reads exactly one of predicate and predicate_expr.
func predicateFrom(data *framework.FieldData) (proof.Predicate, error) {
	raw, hasMap := data.GetOk("predicate")
	expr, hasExpr := data.GetOk("predicate_expr")

	switch {
	case hasMap && hasExpr:
		return nil, errwrap.Wrapf("give either predicate or predicate_expr: {{err}}", verifier.ErrMalformedProof)
	case hasExpr:
		return parsePredicate(expr.(string))
	case hasMap:
		var pred proof.Predicate
		if err := proof.Decode(raw, &pred); err != nil {
			return nil, errwrap.Wrapf("predicate: {{err}}", err)
		}
		return pred, nil
	}
	return nil, errwrap.Wrapf("predicate or predicate_expr is required: {{err}}", verifier.ErrMalformedProof)
}
