package clverify

import (
	"context"

	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/logical"
)

func (b *backend) pathBuilder(ctx context.Context, req *logical.Request, d *framework.FieldData) (*logical.Response, error) {
	data := map[string]interface{}{}
	for _, prefix := range []string{issuerKeysPath, credDefsPath} {
		entries, err := b.getEntries(ctx, []string{prefix})
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []string{}
		}
		data[prefix] = entries
	}
	data["open_interactions"] = b.currentVerifier().OpenInteractions()

	return &logical.Response{Data: data}, nil
}

func (b *backend) pathMetrics(ctx context.Context, req *logical.Request, d *framework.FieldData) (*logical.Response, error) {
	families, err := b.metrics.registry.Gather()
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{}
	for _, mf := range families {
		var samples []map[string]interface{}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}

			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}
			samples = append(samples, map[string]interface{}{
				"labels": labels,
				"value":  value,
			})
		}
		data[mf.GetName()] = samples
	}
	return &logical.Response{Data: data}, nil
}

func pathCatalog(b *backend) []*framework.Path {
	return []*framework.Path{
		{
			Pattern: catalogPath,
			Callbacks: map[logical.Operation]framework.OperationFunc{
				logical.ReadOperation: b.pathBuilder,
			},

			HelpSynopsis: "List registered issuer keys and credential definitions.",
		},
		{
			Pattern: metricsPath,
			Callbacks: map[logical.Operation]framework.OperationFunc{
				logical.ReadOperation: b.pathMetrics,
			},

			HelpSynopsis: "Read the verification counters.",
		},
	}
}
