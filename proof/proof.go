// Package proof holds the prover's messages as the verifier receives them.
package proof

import (
	"math/big"
	"sort"
	"strconv"
)

// Protocol constants shared with the prover.
const (
	LargeEStart = 596
	Iterations  = 4
	LargeNonce  = 80
	Delta       = "DELTA"
	ZeroIndex   = "0"
)

// EncodedAttributes maps issuer key id to attribute name to encoded value.
type EncodedAttributes map[string]map[string]*big.Int

// EqualitySubProof is the (c, e, m, v, A') response of one credential proof.
// E, V and APrime are keyed by issuer key id, M by attribute name.
type EqualitySubProof struct {
	C      *big.Int            `mapstructure:"c" json:"c"`
	E      map[string]*big.Int `mapstructure:"e" json:"e"`
	M      map[string]*big.Int `mapstructure:"m" json:"m"`
	V      map[string]*big.Int `mapstructure:"v" json:"v"`
	APrime map[string]*big.Int `mapstructure:"Aprime" json:"Aprime"`
}

// PredicateSubProof holds the responses of the range decomposition. R and U
// are keyed by bit index "0".."Iterations-1"; R also carries Delta.
type PredicateSubProof struct {
	Alpha *big.Int            `mapstructure:"alpha" json:"alpha"`
	R     map[string]*big.Int `mapstructure:"r" json:"r"`
	U     map[string]*big.Int `mapstructure:"u" json:"u"`
}

// Commitment carries the T commitments for one issuer key.
type Commitment struct {
	TVal map[string]*big.Int `mapstructure:"TVAL" json:"TVAL"`
}

// PredicateProof bundles everything checked against a single challenge.
type PredicateProof struct {
	Equality  EqualitySubProof      `mapstructure:"equalitySubProof" json:"equalitySubProof"`
	Predicate PredicateSubProof     `mapstructure:"predicateSubProof" json:"predicateSubProof"`
	C         map[string]Commitment `mapstructure:"C" json:"C"`
	CList     []*big.Int            `mapstructure:"CList" json:"CList"`
}

// Predicate maps issuer key id to attribute name to the lower bound the
// hidden value must reach.
type Predicate map[string]map[string]*big.Int

// BitIndexes returns "0".."Iterations-1".
func BitIndexes() []string {
	idx := make([]string, Iterations)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}
	return idx
}

// SortedKeys returns the keys of m in lexicographic order. Every hash input
// built from a map is flattened in this order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
