package verifier

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/errwrap"

	"clverify/internal/modmath"
	"clverify/issuerkey"
	"clverify/proof"
)

// PredicateVerifier checks a credential proof together with range proofs
// that hidden attributes reach their thresholds.
type PredicateVerifier struct {
	Hook Hook
}

// Verify rebuilds Tau (the T values, then per predicate attribute the bit
// commitments, Tdelta and Q) and accepts iff H(nonce, Tau..., CList...)
// equals the proof's c. Predicate keys and attributes are walked in sorted
// order.
func (pv PredicateVerifier) Verify(p *proof.PredicateProof, keys PublicKeys, nonce *big.Int, attrs proof.EncodedAttributes, revealed []string, pred proof.Predicate) (bool, error) {
	ids := proof.SortedKeys(keys)
	if err := checkPredicateShape(p, nonce); err != nil {
		return reject(pv.Hook, KindPredicate, ids, err)
	}

	params, err := ComputeParams(&p.Equality, keys, attrs, revealed)
	if err != nil {
		return reject(pv.Hook, KindPredicate, ids, err)
	}

	tau := make([]*big.Int, 0, len(ids)+len(pred)*(proof.Iterations+2))
	for _, id := range params.KeyIDs {
		tau = append(tau, params.T[id])
	}

	for _, id := range proof.SortedKeys(pred) {
		pk, ok := keys[id]
		if !ok || pk == nil {
			return reject(pv.Hook, KindPredicate, ids, errwrap.Wrapf(fmt.Sprintf("predicate on issuer key %s: {{err}}", id), ErrUnknownKey))
		}
		commitment, ok := p.C[id]
		if !ok {
			return reject(pv.Hook, KindPredicate, ids, errwrap.Wrapf(fmt.Sprintf("no commitment for issuer key %s: {{err}}", id), ErrMalformedProof))
		}
		if err := checkTVal(commitment.TVal); err != nil {
			return reject(pv.Hook, KindPredicate, ids, errwrap.Wrapf(fmt.Sprintf("issuer key %s: {{err}}", id), err))
		}

		for _, attr := range proof.SortedKeys(pred[id]) {
			terms, err := predicateTerms(pk.Canonicalize(), commitment.TVal, &p.Predicate, params.C, attrs[id], p.Equality.M, attr, pred[id][attr])
			if err != nil {
				return reject(pv.Hook, KindPredicate, ids, err)
			}
			tau = append(tau, terms...)
		}
	}
	observe(pv.Hook, Event{Kind: KindPredicate, Stage: StageParams, KeyIDs: ids})

	values := make([]*big.Int, 0, 1+len(tau)+len(p.CList))
	values = append(values, nonce)
	values = append(values, tau...)
	values = append(values, p.CList...)

	ok := Challenge(values...).Cmp(params.C) == 0
	observe(pv.Hook, Event{Kind: KindPredicate, Stage: StageChallenge, KeyIDs: ids, Accepted: ok})
	return ok, nil
}

// predicateTerms returns, for one attribute, the Iterations bit terms
// followed by Tdelta and Q.
func predicateTerms(pk *issuerkey.PublicKey, tval map[string]*big.Int, sub *proof.PredicateSubProof, c *big.Int,
	encoded map[string]*big.Int, m map[string]*big.Int, attr string, threshold *big.Int) ([]*big.Int, error) {

	if _, ok := encoded[attr]; !ok {
		return nil, errwrap.Wrapf(fmt.Sprintf("predicate attribute %s: {{err}}", attr), ErrMissingAttribute)
	}
	if threshold == nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("no threshold for %s: {{err}}", attr), ErrMalformedProof)
	}
	mk, ok := m[attr]
	if !ok || mk == nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("no response m for predicate attribute %s: {{err}}", attr), ErrMalformedProof)
	}

	n, z, s := pk.N(), pk.Z(), pk.S()
	negC := new(big.Int).Neg(c)
	tDelta := tval[proof.Delta]

	// (TVAL[DELTA] * Z^threshold)^(-c) * Z^m * S^r[DELTA]
	shifted, err := modmath.NewProduct(n).Mul(tDelta).MulPow(z, threshold).Result()
	if err != nil {
		return nil, err
	}
	tdelta, err := modmath.NewProduct(n).
		MulPow(shifted, negC).
		MulPow(z, mk).
		MulPow(s, sub.R[proof.Delta]).
		Result()
	if err != nil {
		return nil, err
	}

	terms := make([]*big.Int, 0, proof.Iterations+2)
	tu := modmath.NewProduct(n)
	for _, i := range proof.BitIndexes() {
		term, err := modmath.NewProduct(n).
			MulPow(tval[i], negC).
			MulPow(z, sub.U[i]).
			MulPow(s, sub.R[i]).
			Result()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		tu.MulPow(tval[i], sub.U[i])
	}
	tuV, err := tu.Result()
	if err != nil {
		return nil, err
	}
	terms = append(terms, tdelta)

	q, err := modmath.NewProduct(n).
		MulPow(tDelta, negC).
		Mul(tuV).
		MulPow(s, sub.Alpha).
		Result()
	if err != nil {
		return nil, err
	}
	return append(terms, q), nil
}

func checkPredicateShape(p *proof.PredicateProof, nonce *big.Int) error {
	if p == nil {
		return errwrap.Wrapf("proof is missing: {{err}}", ErrMalformedProof)
	}
	if err := checkNonce(nonce); err != nil {
		return err
	}
	sub := p.Predicate
	if sub.Alpha == nil {
		return errwrap.Wrapf("alpha is missing: {{err}}", ErrMalformedProof)
	}
	if sub.R[proof.Delta] == nil {
		return errwrap.Wrapf("r[DELTA] is missing: {{err}}", ErrMalformedProof)
	}
	for _, i := range proof.BitIndexes() {
		if sub.R[i] == nil || sub.U[i] == nil {
			return errwrap.Wrapf(fmt.Sprintf("r[%s] or u[%s] is missing: {{err}}", i, i), ErrMalformedProof)
		}
	}
	for i, v := range p.CList {
		if v == nil || v.Sign() < 0 {
			return errwrap.Wrapf(fmt.Sprintf("CList[%d] is not a non-negative integer: {{err}}", i), ErrMalformedProof)
		}
	}
	return nil
}

func checkTVal(tval map[string]*big.Int) error {
	if tval[proof.Delta] == nil {
		return errwrap.Wrapf("TVAL[DELTA] is missing: {{err}}", ErrMalformedProof)
	}
	for _, i := range proof.BitIndexes() {
		if tval[i] == nil {
			return errwrap.Wrapf(fmt.Sprintf("TVAL[%s] is missing: {{err}}", i), ErrMalformedProof)
		}
	}
	return nil
}

func checkNonce(nonce *big.Int) error {
	if nonce == nil {
		return errwrap.Wrapf("nonce is required: {{err}}", ErrMalformedProof)
	}
	if nonce.Sign() < 0 {
		return errwrap.Wrapf("nonce must be a non-negative integer: {{err}}", ErrMalformedProof)
	}
	return nil
}
