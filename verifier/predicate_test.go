package verifier_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clverify/internal/testprover"
	"clverify/proof"
	"clverify/verifier"
)

func ageFixture(t *testing.T) *testprover.Fixture {
	attrs := proof.EncodedAttributes{
		"gvt": {"name": big.NewInt(42), "age": big.NewInt(30), "height": big.NewInt(175)},
	}
	return testprover.NewFixture(t, 11, map[string]testprover.Issuer{"gvt": testprover.Wide(t, "gvt")}, attrs, []string{"name"})
}

func TestPredicateAcceptsHonestProof(t *testing.T) {
	for _, threshold := range []int64{18, 30} {
		f := ageFixture(t)
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", threshold)

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.True(t, ok, "threshold %d", threshold)
	}
}

func TestPredicateRejects(t *testing.T) {
	f := ageFixture(t)

	t.Run("raised threshold", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
		pred["gvt"]["age"] = big.NewInt(19)

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupted CList", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
		p.CList[1] = new(big.Int).Add(p.CList[1], big.NewInt(1))

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nonce", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, big.NewInt(999979), f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("alpha", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
		p.Predicate.Alpha.Add(p.Predicate.Alpha, big.NewInt(1))

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("equality part", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
		p.Equality.M["height"].Add(p.Equality.M["height"], big.NewInt(1))

		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPredicateMalformed(t *testing.T) {
	f := ageFixture(t)

	cases := map[string]struct {
		mutate   func(p *proof.PredicateProof, pred proof.Predicate)
		sentinel error
	}{
		"missing TVAL entry": {
			mutate:   func(p *proof.PredicateProof, _ proof.Predicate) { delete(p.C["gvt"].TVal, "2") },
			sentinel: verifier.ErrMalformedProof,
		},
		"missing TVAL DELTA": {
			mutate:   func(p *proof.PredicateProof, _ proof.Predicate) { delete(p.C["gvt"].TVal, proof.Delta) },
			sentinel: verifier.ErrMalformedProof,
		},
		"missing commitment": {
			mutate:   func(p *proof.PredicateProof, _ proof.Predicate) { delete(p.C, "gvt") },
			sentinel: verifier.ErrMalformedProof,
		},
		"missing u": {
			mutate:   func(p *proof.PredicateProof, _ proof.Predicate) { delete(p.Predicate.U, "0") },
			sentinel: verifier.ErrMalformedProof,
		},
		"missing alpha": {
			mutate:   func(p *proof.PredicateProof, _ proof.Predicate) { p.Predicate.Alpha = nil },
			sentinel: verifier.ErrMalformedProof,
		},
		"predicate on unknown key": {
			mutate: func(_ *proof.PredicateProof, pred proof.Predicate) {
				pred["xyz"] = map[string]*big.Int{"age": big.NewInt(18)}
			},
			sentinel: verifier.ErrUnknownKey,
		},
		"predicate on undeclared attribute": {
			mutate: func(_ *proof.PredicateProof, pred proof.Predicate) {
				pred["gvt"]["weight"] = big.NewInt(60)
			},
			sentinel: verifier.ErrMissingAttribute,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
			tc.mutate(p, pred)

			ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
			assert.False(t, ok)
			require.ErrorIs(t, err, tc.sentinel)
		})
	}

	t.Run("negative nonce", func(t *testing.T) {
		p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)
		ok, err := verifier.PredicateVerifier{}.Verify(p, f.Keys, big.NewInt(-999983), f.Attrs, f.Revealed, pred)
		assert.False(t, ok)
		require.ErrorIs(t, err, verifier.ErrMalformedProof)
	})

	t.Run("nil proof", func(t *testing.T) {
		ok, err := verifier.PredicateVerifier{}.Verify(nil, f.Keys, testNonce, f.Attrs, f.Revealed, nil)
		assert.False(t, ok)
		require.ErrorIs(t, err, verifier.ErrMalformedProof)
	})
}

func TestPredicateHookKind(t *testing.T) {
	f := ageFixture(t)
	p, pred := f.PredicateProof(t, testNonce, "gvt", "age", 18)

	var last verifier.Event
	ok, err := verifier.PredicateVerifier{Hook: verifier.HookFunc(func(e verifier.Event) { last = e })}.
		Verify(p, f.Keys, testNonce, f.Attrs, f.Revealed, pred)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, verifier.KindPredicate, last.Kind)
	assert.Equal(t, verifier.StageChallenge, last.Stage)
	assert.True(t, last.Accepted)
}
