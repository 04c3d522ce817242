package verifier_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clverify/internal/testprover"
	"clverify/proof"
	"clverify/verifier"
)

var testNonce = big.NewInt(999983)

func smallFixture(t *testing.T, revealed []string) *testprover.Fixture {
	return testprover.NewFixture(t, 1, map[string]testprover.Issuer{"gvt": testprover.Small(t, "gvt")},
		proof.EncodedAttributes{"gvt": {"attr1": big.NewInt(1234)}}, revealed)
}

func TestEqualityAcceptsHonestProof(t *testing.T) {
	for _, revealed := range [][]string{nil, {"attr1"}} {
		f := smallFixture(t, revealed)
		p := f.EqualityProof(t, testNonce)

		ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, testNonce, f.Attrs, f.Revealed)
		require.NoError(t, err)
		assert.True(t, ok, "revealed=%v", revealed)
	}
}

func TestEqualityRejectsTampering(t *testing.T) {
	f := smallFixture(t, nil)

	cases := map[string]func(p *proof.EqualitySubProof) *big.Int{
		"challenge": func(p *proof.EqualitySubProof) *big.Int {
			p.C.Add(p.C, big.NewInt(1))
			return testNonce
		},
		"master secret response": func(p *proof.EqualitySubProof) *big.Int {
			p.M[proof.ZeroIndex].Add(p.M[proof.ZeroIndex], big.NewInt(1))
			return testNonce
		},
		"attribute response": func(p *proof.EqualitySubProof) *big.Int {
			p.M["attr1"].Xor(p.M["attr1"], big.NewInt(1))
			return testNonce
		},
		"other nonce": func(p *proof.EqualitySubProof) *big.Int {
			return big.NewInt(999979)
		},
	}
	for name, tamper := range cases {
		t.Run(name, func(t *testing.T) {
			p := f.EqualityProof(t, testNonce)
			nonce := tamper(p)

			ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, nonce, f.Attrs, f.Revealed)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEqualityRevealedValueMustMatch(t *testing.T) {
	f := smallFixture(t, []string{"attr1"})
	p := f.EqualityProof(t, testNonce)

	claimed := proof.EncodedAttributes{"gvt": {"attr1": big.NewInt(1235)}}
	ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, testNonce, claimed, f.Revealed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualityMultipleKeys(t *testing.T) {
	issuers := map[string]testprover.Issuer{
		"xyz": testprover.NewIssuer(t, "xyz", 1000000007, 998244353, 65539, 27183,
			map[string]int64{"0": 113, "name": 127, "age": 131, "height": 137}),
		"gvt": testprover.Wide(t, "gvt"),
	}
	attrs := proof.EncodedAttributes{
		"gvt": {"name": big.NewInt(42), "age": big.NewInt(30)},
		"xyz": {"height": big.NewInt(175)},
	}
	f := testprover.NewFixture(t, 7, issuers, attrs, []string{"name"})
	p := f.EqualityProof(t, testNonce)

	ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, testNonce, f.Attrs, f.Revealed)
	require.NoError(t, err)
	assert.True(t, ok)

	// the same proof under swapped key ids no longer matches
	swapped := verifier.PublicKeys{"gvt": f.Keys["xyz"], "xyz": f.Keys["gvt"]}
	ok, err = verifier.EqualityVerifier{}.Verify(swapped, p, testNonce, f.Attrs, f.Revealed)
	require.NoError(t, err)
	assert.False(t, ok)

	// and so does a proof whose per-key credentials were exchanged
	crossed := f.EqualityProof(t, testNonce)
	crossed.E["gvt"], crossed.E["xyz"] = crossed.E["xyz"], crossed.E["gvt"]
	crossed.V["gvt"], crossed.V["xyz"] = crossed.V["xyz"], crossed.V["gvt"]
	crossed.APrime["gvt"], crossed.APrime["xyz"] = crossed.APrime["xyz"], crossed.APrime["gvt"]
	ok, err = verifier.EqualityVerifier{}.Verify(f.Keys, crossed, testNonce, f.Attrs, f.Revealed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualityStructuralErrors(t *testing.T) {
	f := smallFixture(t, nil)

	cases := []struct {
		name     string
		mutate   func(p *proof.EqualitySubProof, attrs proof.EncodedAttributes) ([]string, *big.Int)
		sentinel error
	}{
		{
			name: "missing m for hidden attribute",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				delete(p.M, "attr1")
				return nil, testNonce
			},
			sentinel: verifier.ErrMalformedProof,
		},
		{
			name: "missing master secret response",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				delete(p.M, proof.ZeroIndex)
				return nil, testNonce
			},
			sentinel: verifier.ErrMalformedProof,
		},
		{
			name: "missing A'",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				delete(p.APrime, "gvt")
				return nil, testNonce
			},
			sentinel: verifier.ErrMalformedProof,
		},
		{
			name: "nil nonce",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				return nil, nil
			},
			sentinel: verifier.ErrMalformedProof,
		},
		{
			name: "negative nonce",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				return nil, new(big.Int).Neg(testNonce)
			},
			sentinel: verifier.ErrMalformedProof,
		},
		{
			name: "revealed attribute not declared",
			mutate: func(p *proof.EqualitySubProof, _ proof.EncodedAttributes) ([]string, *big.Int) {
				return []string{"attr9"}, testNonce
			},
			sentinel: verifier.ErrMissingAttribute,
		},
		{
			name: "attribute without generator",
			mutate: func(p *proof.EqualitySubProof, attrs proof.EncodedAttributes) ([]string, *big.Int) {
				attrs["gvt"]["attr2"] = big.NewInt(1)
				p.M["attr2"] = big.NewInt(1)
				return nil, testNonce
			},
			sentinel: verifier.ErrMissingAttribute,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := f.EqualityProof(t, testNonce)
			attrs := proof.EncodedAttributes{"gvt": {"attr1": big.NewInt(1234)}}
			revealed, nonce := tc.mutate(p, attrs)

			ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, nonce, attrs, revealed)
			assert.False(t, ok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), err.Error())
			assert.True(t, verifier.IsStructural(err))
		})
	}
}

func TestEqualityNonInvertibleIsFalse(t *testing.T) {
	f := smallFixture(t, nil)
	p := f.EqualityProof(t, testNonce)
	// 61 divides N, so A' has no inverse
	p.APrime["gvt"] = big.NewInt(61)

	ok, err := verifier.EqualityVerifier{}.Verify(f.Keys, p, testNonce, f.Attrs, f.Revealed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualityHookEvents(t *testing.T) {
	f := smallFixture(t, nil)
	p := f.EqualityProof(t, testNonce)

	var events []verifier.Event
	hook := verifier.HookFunc(func(e verifier.Event) { events = append(events, e) })

	ok, err := verifier.EqualityVerifier{Hook: hook}.Verify(f.Keys, p, testNonce, f.Attrs, f.Revealed)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, verifier.StageParams, events[0].Stage)
	assert.Equal(t, verifier.StageChallenge, events[1].Stage)
	assert.True(t, events[1].Accepted)
	assert.Equal(t, []string{"gvt"}, events[1].KeyIDs)

	events = nil
	_, err = verifier.EqualityVerifier{Hook: hook}.Verify(f.Keys, p, nil, f.Attrs, f.Revealed)
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, verifier.StageFailed, events[0].Stage)
	assert.Equal(t, verifier.KindEquality, events[0].Kind)
}

func TestComputeParamsSortedKeys(t *testing.T) {
	issuers := map[string]testprover.Issuer{
		"b": testprover.Wide(t, "b"),
		"a": testprover.Wide(t, "a"),
	}
	attrs := proof.EncodedAttributes{
		"a": {"age": big.NewInt(30)},
		"b": {"height": big.NewInt(175)},
	}
	f := testprover.NewFixture(t, 3, issuers, attrs, nil)
	p := f.EqualityProof(t, testNonce)

	params, err := verifier.ComputeParams(p, f.Keys, f.Attrs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, params.KeyIDs)
	assert.Equal(t, 0, params.C.Cmp(p.C))
	for i, id := range params.KeyIDs {
		assert.Equal(t, 0, params.T[id].Cmp(f.Commitments()[i]), id)
	}
}
