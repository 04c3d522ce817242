package verifier

import (
	"errors"
	"math/big"

	"clverify/internal/modmath"
	"clverify/proof"
)

// EqualityVerifier checks credential (equality) proofs.
type EqualityVerifier struct {
	Hook Hook
}

// Verify recomputes c' = H(A'..., T..., nonce), keys in sorted order, and
// compares it to the proof's c. A mismatch is (false, nil); err is only set
// when the inputs cannot be interpreted.
func (ev EqualityVerifier) Verify(keys PublicKeys, p *proof.EqualitySubProof, nonce *big.Int, attrs proof.EncodedAttributes, revealed []string) (bool, error) {
	ids := proof.SortedKeys(keys)
	if err := checkNonce(nonce); err != nil {
		observe(ev.Hook, Event{Kind: KindEquality, Stage: StageFailed, KeyIDs: ids, Err: err})
		return false, err
	}

	params, err := ComputeParams(p, keys, attrs, revealed)
	if err != nil {
		return reject(ev.Hook, KindEquality, ids, err)
	}
	observe(ev.Hook, Event{Kind: KindEquality, Stage: StageParams, KeyIDs: ids})

	values := make([]*big.Int, 0, 2*len(ids)+1)
	for _, id := range params.KeyIDs {
		values = append(values, params.APrime[id])
	}
	for _, id := range params.KeyIDs {
		values = append(values, params.T[id])
	}
	values = append(values, nonce)

	ok := Challenge(values...).Cmp(params.C) == 0
	observe(ev.Hook, Event{Kind: KindEquality, Stage: StageChallenge, KeyIDs: ids, Accepted: ok})
	return ok, nil
}

// reject turns a non-invertible value into an ordinary failed check and
// reports anything else as a structural error.
func reject(h Hook, kind Kind, ids []string, err error) (bool, error) {
	if errors.Is(err, modmath.ErrNotInvertible) {
		observe(h, Event{Kind: kind, Stage: StageChallenge, KeyIDs: ids, Accepted: false})
		return false, nil
	}
	observe(h, Event{Kind: kind, Stage: StageFailed, KeyIDs: ids, Err: err})
	return false, err
}
