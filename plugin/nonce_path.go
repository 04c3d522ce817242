package clverify

import (
	"context"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"
)

func pathNonce(b *backend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: noncePath + "/" + framework.GenericNameRegex("interaction_id"),

			Fields: map[string]*framework.FieldSchema{
				"interaction_id": {
					Type:        framework.TypeString,
					Description: "The interaction the nonce is issued for.",
					Required:    true,
				},
			},

			Operations: map[logical.Operation]framework.OperationHandler{
				logical.CreateOperation: &framework.PathOperation{
					Callback: b.generateNonce,
				},
				logical.UpdateOperation: &framework.PathOperation{
					Callback: b.generateNonce,
					Summary:  "Draw a fresh nonce for an interaction.",
				},
			},

			HelpSynopsis: "Issue single-use proof nonces.",
		},
	}
}

func (b *backend) generateNonce(ctx context.Context, req *logical.Request, data *framework.FieldData) (*logical.Response, error) {
	interaction := data.Get("interaction_id").(string)
	b.Logger().Info("Invoked: Nonce generation", "interaction_id", interaction)

	n, err := b.currentVerifier().GenerateNonce(interaction)
	if err != nil {
		return nil, errwrap.Wrapf("nonce generation failed: {{err}}", err)
	}
	b.metrics.nonces.Inc()

	return &logical.Response{
		Data: map[string]interface{}{
			"interaction_id": interaction,
			"nonce":          n.String(),
		},
	}, nil
}
