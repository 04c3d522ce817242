package modmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPowNegativeExponent(t *testing.T) {
	n := big.NewInt(3233)
	x := big.NewInt(41)

	pos, err := Pow(x, big.NewInt(7), n)
	require.NoError(t, err)
	neg, err := Pow(x, big.NewInt(-7), n)
	require.NoError(t, err)

	require.Equal(t, int64(1), Mul(pos, neg, n).Int64())
}

func TestPowZeroExponent(t *testing.T) {
	v, err := Pow(big.NewInt(71), big.NewInt(0), big.NewInt(3233))
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int64())
}

func TestInverseFailsForSharedFactor(t *testing.T) {
	_, err := Inverse(big.NewInt(61), big.NewInt(3233))
	require.ErrorIs(t, err, ErrNotInvertible)

	_, err = Pow(big.NewInt(61), big.NewInt(-1), big.NewInt(3233))
	require.ErrorIs(t, err, ErrNotInvertible)
}

func TestDiv(t *testing.T) {
	n := big.NewInt(3233)
	q, err := Div(big.NewInt(41), big.NewInt(5), n)
	require.NoError(t, err)
	require.Equal(t, int64(41), Mul(q, big.NewInt(5), n).Int64())
}

func TestProduct(t *testing.T) {
	n := big.NewInt(3233)
	v, err := NewProduct(n).
		MulPow(big.NewInt(5), big.NewInt(3)).
		MulPow(big.NewInt(7), big.NewInt(2)).
		Mul(big.NewInt(2)).
		Result()
	require.NoError(t, err)
	require.Equal(t, int64(125*49*2%3233), v.Int64())

	_, err = NewProduct(n).MulPow(big.NewInt(53), big.NewInt(-1)).Mul(big.NewInt(2)).Result()
	require.ErrorIs(t, err, ErrNotInvertible)
}

func TestOneDegenerateModulus(t *testing.T) {
	require.Equal(t, int64(0), One(big.NewInt(1)).Int64())
	require.Equal(t, int64(1), One(big.NewInt(3233)).Int64())
}
