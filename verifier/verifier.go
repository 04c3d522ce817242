// Package verifier checks CL credential proofs and predicate (range) proofs
// by recomputing the prover's Fiat-Shamir challenge.
//
// Every hash input built from a map is flattened with issuer key ids, and
// then attribute names, in lexicographic order. Provers must use the same
// order.
package verifier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/hashicorp/errwrap"
	cache "github.com/patrickmn/go-cache"

	"clverify/issuerkey"
	"clverify/proof"
)

const nonceAttempts = 8

// Verifier issues nonces and checks proofs against keys resolved from its
// stores. It is safe for concurrent use.
type Verifier struct {
	id         string
	credDefs   CredDefStore
	issuerKeys IssuerKeyStore
	hook       Hook
	random     io.Reader

	// nonce string -> interaction id
	nonces *cache.Cache
	// serialises ConsumeNonce so a nonce is handed out once
	consumeMu sync.Mutex
}

type Option func(*Verifier)

// WithHook installs the observability hook.
func WithHook(h Hook) Option {
	return func(v *Verifier) { v.hook = h }
}

// WithNonceTTL expires open interactions after d. Zero keeps them until
// consumed.
func WithNonceTTL(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.nonces = cache.New(d, d)
		}
	}
}

// WithRandom replaces crypto/rand as the nonce source.
func WithRandom(r io.Reader) Option {
	return func(v *Verifier) { v.random = r }
}

// New builds a verifier. credDefs may be nil, in which case credential
// definition ids are not checked.
func New(id string, credDefs CredDefStore, issuerKeys IssuerKeyStore, opts ...Option) *Verifier {
	v := &Verifier{
		id:         id,
		credDefs:   credDefs,
		issuerKeys: issuerKeys,
		hook:       NopHook{},
		random:     rand.Reader,
		nonces:     cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) ID() string { return v.id }

func (v *Verifier) String() string { return v.id }

// GenerateNonce draws a LargeNonce-bit nonce and records it for
// interactionID.
func (v *Verifier) GenerateNonce(interactionID string) (*big.Int, error) {
	bound := new(big.Int).Lsh(big.NewInt(1), proof.LargeNonce)
	for i := 0; i < nonceAttempts; i++ {
		n, err := rand.Int(v.random, bound)
		if err != nil {
			return nil, errwrap.Wrapf("drawing nonce: {{err}}", err)
		}
		// Add fails when the key is already present
		if err := v.nonces.Add(n.String(), interactionID, cache.DefaultExpiration); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no unused nonce after %d attempts", nonceAttempts)
}

// Interaction returns the interaction a nonce was issued for.
func (v *Verifier) Interaction(nonce *big.Int) (string, bool) {
	if nonce == nil {
		return "", false
	}
	id, ok := v.nonces.Get(nonce.String())
	if !ok {
		return "", false
	}
	return id.(string), true
}

// ConsumeNonce removes an open nonce and returns its interaction. A nonce
// can be consumed once.
func (v *Verifier) ConsumeNonce(nonce *big.Int) (string, bool) {
	v.consumeMu.Lock()
	defer v.consumeMu.Unlock()

	id, ok := v.Interaction(nonce)
	if ok {
		v.nonces.Delete(nonce.String())
	}
	return id, ok
}

// OpenInteractions counts the nonces not yet consumed or expired.
func (v *Verifier) OpenInteractions() int {
	return v.nonces.ItemCount()
}

// VerifyRequest is one credential proof against one issuer key.
type VerifyRequest struct {
	// IssuerID keys the proof's e, v and A' maps and the attributes; it
	// defaults to IssuerKeyID.
	IssuerID      string
	IssuerKeyID   string
	CredDefID     string
	Proof         *proof.EqualitySubProof
	Nonce         *big.Int
	Attrs         proof.EncodedAttributes
	RevealedAttrs []string
}

// Verify resolves the issuer key and checks the equality proof.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (bool, error) {
	if req.CredDefID != "" && v.credDefs != nil {
		if _, err := v.credDefs.FetchCredDef(ctx, req.CredDefID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, errwrap.Wrapf(fmt.Sprintf("credential definition %s: {{err}}", req.CredDefID), ErrUnknownCredDef)
			}
			return false, err
		}
	}

	pk, err := v.fetchKey(ctx, req.IssuerKeyID)
	if err != nil {
		return false, err
	}

	proofID := req.IssuerID
	if proofID == "" {
		proofID = req.IssuerKeyID
	}
	return EqualityVerifier{Hook: v.hook}.Verify(PublicKeys{proofID: pk}, req.Proof, req.Nonce, req.Attrs, req.RevealedAttrs)
}

// PredicateRequest is a predicate proof over one or more credentials. The
// proof, attributes and predicate are keyed by issuer key id.
type PredicateRequest struct {
	Proof         *proof.PredicateProof
	Nonce         *big.Int
	Attrs         proof.EncodedAttributes
	RevealedAttrs []string
	Predicate     proof.Predicate
}

// VerifyPredicate resolves every issuer key named in the attributes and
// checks the predicate proof.
func (v *Verifier) VerifyPredicate(ctx context.Context, req PredicateRequest) (bool, error) {
	// every bound must name a key that carries attributes
	for _, id := range proof.SortedKeys(req.Predicate) {
		if _, ok := req.Attrs[id]; !ok {
			return false, errwrap.Wrapf(fmt.Sprintf("predicate on issuer key %s has no encoded attributes: {{err}}", id), ErrMissingAttribute)
		}
	}

	keys := make(PublicKeys, len(req.Attrs))
	for _, id := range proof.SortedKeys(req.Attrs) {
		pk, err := v.fetchKey(ctx, id)
		if err != nil {
			return false, err
		}
		keys[id] = pk
	}
	return PredicateVerifier{Hook: v.hook}.Verify(req.Proof, keys, req.Nonce, req.Attrs, req.RevealedAttrs, req.Predicate)
}

func (v *Verifier) fetchKey(ctx context.Context, id string) (*issuerkey.PublicKey, error) {
	pk, err := v.issuerKeys.FetchIssuerKey(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), ErrUnknownKey)
		}
		return nil, err
	}
	if pk == nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), ErrUnknownKey)
	}
	return pk, nil
}
