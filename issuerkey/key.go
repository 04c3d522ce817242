// Package issuerkey holds the public key an issuer publishes for a
// credential definition: the RSA modulus N and the generators S, Z and
// R[attr]. Every generator is kept reduced modulo N.
package issuerkey

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/errwrap"
)

// MasterSecretKey is the reserved R entry for the holder's master secret.
const MasterSecretKey = "0"

var (
	ErrInvalidKeyMaterial   = errors.New("invalid key material")
	ErrDecode               = errors.New("malformed key field")
	ErrUnsupportedValueType = errors.New("unsupported value type")
)

// PublicKey is immutable once built; accessors hand out copies.
type PublicKey struct {
	id string
	n  *big.Int
	s  *big.Int
	z  *big.Int
	r  map[string]*big.Int
}

// New builds a key, reducing S, Z and every R value modulo N.
func New(id string, n *big.Int, r map[string]*big.Int, s, z *big.Int) (*PublicKey, error) {
	if n == nil || n.Cmp(big.NewInt(1)) <= 0 {
		return nil, errwrap.Wrapf("modulus must be an integer greater than 1: {{err}}", ErrInvalidKeyMaterial)
	}
	if s == nil || z == nil {
		return nil, errwrap.Wrapf("S and Z are required: {{err}}", ErrInvalidKeyMaterial)
	}
	if len(r) == 0 {
		return nil, errwrap.Wrapf("R is empty: {{err}}", ErrInvalidKeyMaterial)
	}
	if _, ok := r[MasterSecretKey]; !ok {
		return nil, errwrap.Wrapf(`R has no master secret generator "0": {{err}}`, ErrInvalidKeyMaterial)
	}

	k := &PublicKey{
		id: id,
		n:  new(big.Int).Set(n),
		s:  new(big.Int).Mod(s, n),
		z:  new(big.Int).Mod(z, n),
		r:  make(map[string]*big.Int, len(r)),
	}
	for name, v := range r {
		if v == nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("R[%s] is missing: {{err}}", name), ErrInvalidKeyMaterial)
		}
		k.r[name] = new(big.Int).Mod(v, n)
	}
	return k, nil
}

// Canonicalize returns a copy with every field re-reduced modulo N.
func (k *PublicKey) Canonicalize() *PublicKey {
	c := &PublicKey{
		id: k.id,
		n:  new(big.Int).Set(k.n),
		s:  new(big.Int).Mod(k.s, k.n),
		z:  new(big.Int).Mod(k.z, k.n),
		r:  make(map[string]*big.Int, len(k.r)),
	}
	for name, v := range k.r {
		c.r[name] = new(big.Int).Mod(v, k.n)
	}
	return c
}

func (k *PublicKey) ID() string { return k.id }

func (k *PublicKey) N() *big.Int { return new(big.Int).Set(k.n) }

func (k *PublicKey) S() *big.Int { return new(big.Int).Set(k.s) }

func (k *PublicKey) Z() *big.Int { return new(big.Int).Set(k.z) }

// R returns the generator for an attribute.
func (k *PublicKey) R(name string) (*big.Int, bool) {
	v, ok := k.r[name]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// AttrNames lists the R keys in sorted order, master secret included.
func (k *PublicKey) AttrNames() []string {
	names := make([]string, 0, len(k.r))
	for name := range k.r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithID returns a copy registered under another id.
func (k *PublicKey) WithID(id string) *PublicKey {
	c := k.Canonicalize()
	c.id = id
	return c
}

func (k *PublicKey) Equal(o *PublicKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	if k.id != o.id || k.n.Cmp(o.n) != 0 || k.s.Cmp(o.s) != 0 || k.z.Cmp(o.z) != 0 {
		return false
	}
	if len(k.r) != len(o.r) {
		return false
	}
	for name, v := range k.r {
		ov, ok := o.r[name]
		if !ok || v.Cmp(ov) != 0 {
			return false
		}
	}
	return true
}

func (k *PublicKey) String() string {
	return k.id
}
