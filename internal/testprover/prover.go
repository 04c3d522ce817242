// Package testprover is a prover over toy moduli whose
// factorisation is known, so tests can sign credentials and answer
// challenges honestly.
package testprover

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"clverify/internal/modmath"
	"clverify/issuerkey"
	"clverify/proof"
	"clverify/verifier"
)

// Issuer holds a public key together with phi(N).
type Issuer struct {
	PK  *issuerkey.PublicKey
	phi *big.Int
}

func NewIssuer(t testing.TB, id string, p, q int64, s, z int64, r map[string]int64) Issuer {
	t.Helper()
	bp, bq := big.NewInt(p), big.NewInt(q)
	n := new(big.Int).Mul(bp, bq)
	phi := new(big.Int).Mul(new(big.Int).Sub(bp, big.NewInt(1)), new(big.Int).Sub(bq, big.NewInt(1)))

	rs := make(map[string]*big.Int, len(r))
	for k, v := range r {
		rs[k] = big.NewInt(v)
	}
	pk, err := issuerkey.New(id, n, rs, big.NewInt(s), big.NewInt(z))
	require.NoError(t, err)
	return Issuer{PK: pk, phi: phi}
}

// Small is N = 61*53 = 3233, S = 71, Z = 41, R = {0: 5, attr1: 7}.
func Small(t testing.TB, id string) Issuer {
	return NewIssuer(t, id, 61, 53, 71, 41, map[string]int64{"0": 5, "attr1": 7})
}

// Wide uses a modulus above 2^59 with R for name, age and height.
func Wide(t testing.TB, id string) Issuer {
	return NewIssuer(t, id, 1000000007, 998244353, 65537, 31337,
		map[string]int64{"0": 101, "name": 103, "age": 107, "height": 109})
}

type credential struct {
	aPrime *big.Int
	ePrime *big.Int
	v      *big.Int
}

// sign issues a credential on attrs and the master secret ms: it solves
// Z = A'^e * R0^ms * prod R_k^m_k * S^v for A' with e = 2^LargeEStart + e'.
func (is Issuer) sign(t testing.TB, rng *rand.Rand, attrs map[string]*big.Int, ms *big.Int) credential {
	t.Helper()
	n := is.PK.N()
	v := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 64))

	eBase := new(big.Int).Lsh(big.NewInt(1), proof.LargeEStart)
	ePrime := big.NewInt(rng.Int63n(1<<20)*2 + 1)
	var d *big.Int
	for {
		e := new(big.Int).Add(eBase, ePrime)
		if d = new(big.Int).ModInverse(e, is.phi); d != nil {
			break
		}
		ePrime.Add(ePrime, big.NewInt(2))
	}

	r0, _ := is.PK.R(proof.ZeroIndex)
	prod := modmath.NewProduct(n).MulPow(r0, ms).MulPow(is.PK.S(), v)
	for _, name := range proof.SortedKeys(attrs) {
		r, ok := is.PK.R(name)
		require.True(t, ok, name)
		prod.MulPow(r, attrs[name])
	}
	denom, err := prod.Result()
	require.NoError(t, err)
	q, err := modmath.Div(is.PK.Z(), denom, n)
	require.NoError(t, err)

	return credential{aPrime: new(big.Int).Exp(q, d, n), ePrime: ePrime, v: v}
}

type equalityProver struct {
	rng      *rand.Rand
	issuers  map[string]Issuer
	creds    map[string]credential
	attrs    proof.EncodedAttributes
	revealed map[string]bool
	ms       *big.Int

	tildeE map[string]*big.Int
	tildeV map[string]*big.Int
	tildeM map[string]*big.Int
	t      map[string]*big.Int
}

func randTilde(rng *rand.Rand) *big.Int {
	return new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 80))
}

// commit picks the blinding values and computes the T~ commitments.
func (ep *equalityProver) commit(t testing.TB) {
	t.Helper()
	ep.tildeE = map[string]*big.Int{}
	ep.tildeV = map[string]*big.Int{}
	ep.tildeM = map[string]*big.Int{proof.ZeroIndex: randTilde(ep.rng)}
	ep.t = map[string]*big.Int{}

	for _, id := range proof.SortedKeys(ep.issuers) {
		for _, name := range proof.SortedKeys(ep.attrs[id]) {
			if !ep.revealed[name] && ep.tildeM[name] == nil {
				ep.tildeM[name] = randTilde(ep.rng)
			}
		}
	}

	for _, id := range proof.SortedKeys(ep.issuers) {
		pk := ep.issuers[id].PK
		ep.tildeE[id] = randTilde(ep.rng)
		ep.tildeV[id] = randTilde(ep.rng)

		r0, _ := pk.R(proof.ZeroIndex)
		prod := modmath.NewProduct(pk.N()).
			MulPow(ep.creds[id].aPrime, ep.tildeE[id]).
			MulPow(r0, ep.tildeM[proof.ZeroIndex]).
			MulPow(pk.S(), ep.tildeV[id])
		for _, name := range proof.SortedKeys(ep.attrs[id]) {
			if ep.revealed[name] {
				continue
			}
			r, _ := pk.R(name)
			prod.MulPow(r, ep.tildeM[name])
		}
		v, err := prod.Result()
		require.NoError(t, err)
		ep.t[id] = v
	}
}

func (ep *equalityProver) aPrimes() []*big.Int {
	var out []*big.Int
	for _, id := range proof.SortedKeys(ep.issuers) {
		out = append(out, ep.creds[id].aPrime)
	}
	return out
}

func (ep *equalityProver) commitments() []*big.Int {
	var out []*big.Int
	for _, id := range proof.SortedKeys(ep.issuers) {
		out = append(out, ep.t[id])
	}
	return out
}

func addMul(tilde, c, secret *big.Int) *big.Int {
	return new(big.Int).Add(tilde, new(big.Int).Mul(c, secret))
}

// respond answers challenge c.
func (ep *equalityProver) respond(c *big.Int) *proof.EqualitySubProof {
	sp := &proof.EqualitySubProof{
		C:      new(big.Int).Set(c),
		E:      map[string]*big.Int{},
		M:      map[string]*big.Int{},
		V:      map[string]*big.Int{},
		APrime: map[string]*big.Int{},
	}
	secret := map[string]*big.Int{proof.ZeroIndex: ep.ms}
	for _, attrs := range ep.attrs {
		for name, v := range attrs {
			secret[name] = v
		}
	}
	for name, tilde := range ep.tildeM {
		sp.M[name] = addMul(tilde, c, secret[name])
	}
	for _, id := range proof.SortedKeys(ep.issuers) {
		cred := ep.creds[id]
		sp.E[id] = addMul(ep.tildeE[id], c, cred.ePrime)
		sp.V[id] = addMul(ep.tildeV[id], c, cred.v)
		sp.APrime[id] = new(big.Int).Set(cred.aPrime)
	}
	return sp
}

// Fixture is a signed credential per issuer plus the prover holding them.
type Fixture struct {
	Keys     verifier.PublicKeys
	Attrs    proof.EncodedAttributes
	Revealed []string
	prover   *equalityProver
}

// NewFixture signs one credential per issuer over attrs with a shared master
// secret and prepares a prover.
func NewFixture(t testing.TB, seed int64, issuers map[string]Issuer, attrs proof.EncodedAttributes, revealed []string) *Fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	ms := randTilde(rng)

	keys := verifier.PublicKeys{}
	creds := map[string]credential{}
	for _, id := range proof.SortedKeys(issuers) {
		keys[id] = issuers[id].PK
		creds[id] = issuers[id].sign(t, rng, attrs[id], ms)
	}

	rev := map[string]bool{}
	for _, name := range revealed {
		rev[name] = true
	}
	return &Fixture{
		Keys:     keys,
		Attrs:    attrs,
		Revealed: revealed,
		prover: &equalityProver{
			rng:      rng,
			issuers:  issuers,
			creds:    creds,
			attrs:    attrs,
			revealed: rev,
			ms:       ms,
		},
	}
}

// EqualityProof produces an honest equality proof for nonce.
func (f *Fixture) EqualityProof(t testing.TB, nonce *big.Int) *proof.EqualitySubProof {
	t.Helper()
	f.prover.commit(t)
	values := append(f.prover.aPrimes(), f.prover.commitments()...)
	values = append(values, nonce)
	return f.prover.respond(verifier.Challenge(values...))
}

// fourSquares writes delta as u0^2+u1^2+u2^2+u3^2.
func fourSquares(t testing.TB, delta int64) [proof.Iterations]int64 {
	t.Helper()
	for a := int64(0); a*a <= delta; a++ {
		for b := int64(0); a*a+b*b <= delta; b++ {
			for c := int64(0); a*a+b*b+c*c <= delta; c++ {
				rest := delta - a*a - b*b - c*c
				d := int64(0)
				for d*d < rest {
					d++
				}
				if d*d == rest {
					return [proof.Iterations]int64{a, b, c, d}
				}
			}
		}
	}
	t.Fatalf("no decomposition of %d", delta)
	return [proof.Iterations]int64{}
}

// PredicateProof produces an honest proof that attrs[id][attr] >= threshold.
func (f *Fixture) PredicateProof(t testing.TB, nonce *big.Int, id, attr string, threshold int64) (*proof.PredicateProof, proof.Predicate) {
	t.Helper()
	ep := f.prover
	ep.commit(t)
	rng := ep.rng
	pk := ep.issuers[id].PK
	n, z, s := pk.N(), pk.Z(), pk.S()

	value := f.Attrs[id][attr]
	delta := new(big.Int).Sub(value, big.NewInt(threshold))
	require.True(t, delta.Sign() >= 0, "honest prover needs a satisfied predicate")
	u := fourSquares(t, delta.Int64())

	pow := func(parts ...[2]*big.Int) *big.Int {
		prod := modmath.NewProduct(n)
		for _, p := range parts {
			prod.MulPow(p[0], p[1])
		}
		v, err := prod.Result()
		require.NoError(t, err)
		return v
	}

	tval := map[string]*big.Int{}
	r := map[string]*big.Int{}
	tildeU := map[string]*big.Int{}
	tildeR := map[string]*big.Int{}
	for i, idx := range proof.BitIndexes() {
		r[idx] = randTilde(rng)
		tildeU[idx] = randTilde(rng)
		tildeR[idx] = randTilde(rng)
		tval[idx] = pow([2]*big.Int{z, big.NewInt(u[i])}, [2]*big.Int{s, r[idx]})
	}
	r[proof.Delta] = randTilde(rng)
	tildeR[proof.Delta] = randTilde(rng)
	tval[proof.Delta] = pow([2]*big.Int{z, delta}, [2]*big.Int{s, r[proof.Delta]})
	tildeAlpha := randTilde(rng)

	tau := ep.commitments()
	for _, idx := range proof.BitIndexes() {
		tau = append(tau, pow([2]*big.Int{z, tildeU[idx]}, [2]*big.Int{s, tildeR[idx]}))
	}
	tau = append(tau, pow([2]*big.Int{z, ep.tildeM[attr]}, [2]*big.Int{s, tildeR[proof.Delta]}))
	q := [][2]*big.Int{{s, tildeAlpha}}
	for _, idx := range proof.BitIndexes() {
		q = append(q, [2]*big.Int{tval[idx], tildeU[idx]})
	}
	tau = append(tau, pow(q...))

	cList := ep.aPrimes()
	for _, idx := range proof.BitIndexes() {
		cList = append(cList, tval[idx])
	}
	cList = append(cList, tval[proof.Delta])

	values := append([]*big.Int{nonce}, tau...)
	values = append(values, cList...)
	c := verifier.Challenge(values...)

	// alpha = r_delta - sum u_i r_i
	alpha := new(big.Int).Set(r[proof.Delta])
	sub := proof.PredicateSubProof{R: map[string]*big.Int{}, U: map[string]*big.Int{}}
	for i, idx := range proof.BitIndexes() {
		ui := big.NewInt(u[i])
		alpha.Sub(alpha, new(big.Int).Mul(ui, r[idx]))
		sub.U[idx] = addMul(tildeU[idx], c, ui)
		sub.R[idx] = addMul(tildeR[idx], c, r[idx])
	}
	sub.R[proof.Delta] = addMul(tildeR[proof.Delta], c, r[proof.Delta])
	sub.Alpha = addMul(tildeAlpha, c, alpha)

	pp := &proof.PredicateProof{
		Equality:  *ep.respond(c),
		Predicate: sub,
		C:         map[string]proof.Commitment{id: {TVal: tval}},
		CList:     cList,
	}
	return pp, proof.Predicate{id: {attr: big.NewInt(threshold)}}
}

// Commitments returns the T~ values of the last proof in key order.
func (f *Fixture) Commitments() []*big.Int {
	return f.prover.commitments()
}
