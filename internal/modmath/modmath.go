// Package modmath holds the modular arithmetic shared by the verifiers.
package modmath

import (
	"errors"
	"math/big"
)

// ErrNotInvertible is returned when a base has no inverse modulo N.
var ErrNotInvertible = errors.New("value is not invertible modulo N")

var one = big.NewInt(1)

// Mod returns x mod n in [0, n).
func Mod(x, n *big.Int) *big.Int {
	return new(big.Int).Mod(x, n)
}

// Mul returns x*y mod n.
func Mul(x, y, n *big.Int) *big.Int {
	return Mod(new(big.Int).Mul(x, y), n)
}

// Inverse returns x^-1 mod n.
func Inverse(x, n *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(Mod(x, n), n)
	if inv == nil {
		return nil, ErrNotInvertible
	}
	return inv, nil
}

// Div returns x * y^-1 mod n.
func Div(x, y, n *big.Int) (*big.Int, error) {
	inv, err := Inverse(y, n)
	if err != nil {
		return nil, err
	}
	return Mul(x, inv, n), nil
}

// Pow returns base^exp mod n. Unlike big.Int.Exp a negative exponent is
// honoured: base is inverted first and raised to |exp|.
func Pow(base, exp, n *big.Int) (*big.Int, error) {
	if exp.Sign() >= 0 {
		return new(big.Int).Exp(Mod(base, n), exp, n), nil
	}
	inv, err := Inverse(base, n)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(inv, new(big.Int).Neg(exp), n), nil
}

// One returns 1 mod n, which is 0 for the degenerate modulus 1.
func One(n *big.Int) *big.Int {
	return Mod(one, n)
}

// Product accumulates a running product of powers modulo N. The first
// failing factor is kept and every later call becomes a no-op.
type Product struct {
	n   *big.Int
	acc *big.Int
	err error
}

// NewProduct starts a product at 1 mod n.
func NewProduct(n *big.Int) *Product {
	return &Product{n: n, acc: One(n)}
}

// MulPow multiplies base^exp into the product.
func (p *Product) MulPow(base, exp *big.Int) *Product {
	if p.err != nil {
		return p
	}
	v, err := Pow(base, exp, p.n)
	if err != nil {
		p.err = err
		return p
	}
	p.acc = Mul(p.acc, v, p.n)
	return p
}

// Mul multiplies x into the product.
func (p *Product) Mul(x *big.Int) *Product {
	if p.err != nil {
		return p
	}
	p.acc = Mul(p.acc, x, p.n)
	return p
}

// Result returns the product and the first error encountered.
func (p *Product) Result() (*big.Int, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.acc, nil
}
