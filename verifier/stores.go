package verifier

import (
	"context"
	"fmt"

	"github.com/hashicorp/errwrap"

	"clverify/issuerkey"
)

// CredentialDefinition describes what an issuer certifies under one key.
type CredentialDefinition struct {
	ID          string   `json:"id" mapstructure:"id"`
	IssuerID    string   `json:"issuer_id" mapstructure:"issuer_id"`
	IssuerKeyID string   `json:"issuer_key_id" mapstructure:"issuer_key_id"`
	Name        string   `json:"name" mapstructure:"name"`
	Version     string   `json:"version" mapstructure:"version"`
	AttrNames   []string `json:"attr_names" mapstructure:"attr_names"`
}

// CredDefStore looks credential definitions up by id. A missing entry is
// reported with an error wrapping ErrNotFound.
type CredDefStore interface {
	FetchCredDef(ctx context.Context, id string) (*CredentialDefinition, error)
}

// IssuerKeyStore looks issuer public keys up by id. A missing entry is
// reported with an error wrapping ErrNotFound.
type IssuerKeyStore interface {
	FetchIssuerKey(ctx context.Context, id string) (*issuerkey.PublicKey, error)
}

// StaticKeyStore serves a fixed set of keys.
type StaticKeyStore map[string]*issuerkey.PublicKey

func (s StaticKeyStore) FetchIssuerKey(_ context.Context, id string) (*issuerkey.PublicKey, error) {
	k, ok := s[id]
	if !ok {
		return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), ErrNotFound)
	}
	return k, nil
}

// StaticCredDefStore serves a fixed set of credential definitions.
type StaticCredDefStore map[string]*CredentialDefinition

func (s StaticCredDefStore) FetchCredDef(_ context.Context, id string) (*CredentialDefinition, error) {
	d, ok := s[id]
	if !ok {
		return nil, errwrap.Wrapf(fmt.Sprintf("credential definition %s: {{err}}", id), ErrNotFound)
	}
	return d, nil
}
