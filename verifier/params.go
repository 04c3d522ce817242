package verifier

import (
	"fmt"
	"math/big"
	"runtime"

	"github.com/hashicorp/errwrap"
	"golang.org/x/sync/errgroup"

	"clverify/internal/modmath"
	"clverify/issuerkey"
	"clverify/proof"
)

// PublicKeys indexes issuer public keys by the id the proof uses for them.
type PublicKeys map[string]*issuerkey.PublicKey

// Params are the values the challenge is recomputed from. KeyIDs is the
// sorted issuer key order every flattening follows.
type Params struct {
	C      *big.Int
	APrime map[string]*big.Int
	T      map[string]*big.Int
	KeyIDs []string
}

// keyInput is everything one T value needs, gathered and checked up front
// so the arithmetic itself can only fail on a non-invertible value.
type keyInput struct {
	pk       *issuerkey.PublicKey
	aPrime   *big.Int
	e        *big.Int
	v        *big.Int
	hidden   map[string]*big.Int // attr -> m response, master secret included
	revealed map[string]*big.Int // attr -> encoded value
}

// ComputeParams rebuilds the T value of every issuer key from the equality
// sub-proof. Attributes named in revealed are taken from attrs; every other
// attribute of a key is hidden and contributes its m response.
func ComputeParams(p *proof.EqualitySubProof, keys PublicKeys, attrs proof.EncodedAttributes, revealed []string) (*Params, error) {
	if p == nil || p.C == nil {
		return nil, errwrap.Wrapf("challenge c is missing: {{err}}", ErrMalformedProof)
	}
	if len(keys) == 0 {
		return nil, errwrap.Wrapf("no issuer keys: {{err}}", ErrUnknownKey)
	}

	revealedSet := make(map[string]bool, len(revealed))
	for _, name := range revealed {
		revealedSet[name] = true
	}
	for name := range revealedSet {
		if !declared(attrs, keys, name) {
			return nil, errwrap.Wrapf(fmt.Sprintf("revealed attribute %s: {{err}}", name), ErrMissingAttribute)
		}
	}

	ids := proof.SortedKeys(keys)
	inputs := make([]*keyInput, len(ids))
	for i, id := range ids {
		in, err := gatherKeyInput(id, p, keys[id], attrs, revealedSet)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}

	ts := make([]*big.Int, len(ids))
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range inputs {
		i := i
		g.Go(func() error {
			ts[i], errs[i] = inputs[i].t(p.C)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		// report the first failure in key order, not completion order
		for i, err := range errs {
			if err != nil {
				return nil, errwrap.Wrapf(fmt.Sprintf("T for %s: {{err}}", ids[i]), err)
			}
		}
	}

	params := &Params{
		C:      new(big.Int).Set(p.C),
		APrime: make(map[string]*big.Int, len(ids)),
		T:      make(map[string]*big.Int, len(ids)),
		KeyIDs: ids,
	}
	for i, id := range ids {
		params.APrime[id] = inputs[i].aPrime
		params.T[id] = ts[i]
	}
	return params, nil
}

func declared(attrs proof.EncodedAttributes, keys PublicKeys, name string) bool {
	for id := range keys {
		if _, ok := attrs[id][name]; ok {
			return true
		}
	}
	return false
}

func gatherKeyInput(id string, p *proof.EqualitySubProof, pk *issuerkey.PublicKey, attrs proof.EncodedAttributes, revealedSet map[string]bool) (*keyInput, error) {
	if pk == nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), ErrUnknownKey)
	}
	included, ok := attrs[id]
	if !ok {
		return nil, errwrap.Wrapf(fmt.Sprintf("no encoded attributes for issuer key %s: {{err}}", id), ErrMissingAttribute)
	}

	in := &keyInput{
		pk:       pk.Canonicalize(),
		aPrime:   p.APrime[id],
		e:        p.E[id],
		v:        p.V[id],
		hidden:   make(map[string]*big.Int),
		revealed: make(map[string]*big.Int),
	}
	if in.aPrime == nil || in.e == nil || in.v == nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("A', e or v missing for issuer key %s: {{err}}", id), ErrMalformedProof)
	}

	for name, value := range included {
		if name == proof.ZeroIndex {
			return nil, errwrap.Wrapf("attribute name 0 is reserved for the master secret: {{err}}", ErrMalformedProof)
		}
		if _, ok := in.pk.R(name); !ok {
			return nil, errwrap.Wrapf(fmt.Sprintf("issuer key %s has no generator for %s: {{err}}", id, name), ErrMissingAttribute)
		}
		if revealedSet[name] {
			if value == nil {
				return nil, errwrap.Wrapf(fmt.Sprintf("revealed attribute %s has no value: {{err}}", name), ErrMissingAttribute)
			}
			in.revealed[name] = value
			continue
		}
		m, ok := p.M[name]
		if !ok || m == nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("no response m for hidden attribute %s: {{err}}", name), ErrMalformedProof)
		}
		in.hidden[name] = m
	}

	ms, ok := p.M[proof.ZeroIndex]
	if !ok || ms == nil {
		return nil, errwrap.Wrapf("no response m for the master secret: {{err}}", ErrMalformedProof)
	}
	in.hidden[proof.ZeroIndex] = ms
	return in, nil
}

// t computes (Z / (Rr * A'^(2^LargeEStart)))^(-c) * A'^e * Rur * S^v mod N.
func (in *keyInput) t(c *big.Int) (*big.Int, error) {
	n, z, s := in.pk.N(), in.pk.Z(), in.pk.S()

	rur := modmath.NewProduct(n)
	for _, name := range proof.SortedKeys(in.hidden) {
		r, _ := in.pk.R(name)
		rur.MulPow(r, in.hidden[name])
	}
	rurV, err := rur.Result()
	if err != nil {
		return nil, err
	}

	denom := modmath.NewProduct(n)
	for _, name := range proof.SortedKeys(in.revealed) {
		r, _ := in.pk.R(name)
		denom.MulPow(r, in.revealed[name])
	}
	denom.MulPow(in.aPrime, new(big.Int).Lsh(big.NewInt(1), proof.LargeEStart))
	denomV, err := denom.Result()
	if err != nil {
		return nil, err
	}

	base, err := modmath.Div(z, denomV, n)
	if err != nil {
		return nil, err
	}

	return modmath.NewProduct(n).
		MulPow(base, new(big.Int).Neg(c)).
		MulPow(in.aPrime, in.e).
		Mul(rurV).
		MulPow(s, in.v).
		Result()
}
