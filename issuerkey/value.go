package issuerkey

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hashicorp/errwrap"
)

// Value is a key field as it arrives on the wire: either an integer the
// transport already parsed, or a string that still needs decoding.
type Value interface {
	resolve(dec Decoder) (*big.Int, error)
}

// RawInteger is an already-parsed integer field.
type RawInteger struct{ Int *big.Int }

// EncodedString is a decimal string, optionally wrapped by a Decoder.
type EncodedString string

// Decoder unwraps a transport encoding, yielding the decimal string.
type Decoder func(string) (string, error)

// Base58Decoder treats the field as base58 over the decimal digits.
func Base58Decoder(s string) (string, error) {
	b := base58.Decode(s)
	if len(b) == 0 && s != "" {
		return "", errwrap.Wrapf(fmt.Sprintf("%q is not base58: {{err}}", s), ErrDecode)
	}
	return string(b), nil
}

func (v RawInteger) resolve(Decoder) (*big.Int, error) {
	if v.Int == nil {
		return nil, errwrap.Wrapf("nil integer: {{err}}", ErrDecode)
	}
	return new(big.Int).Set(v.Int), nil
}

func (v EncodedString) resolve(dec Decoder) (*big.Int, error) {
	s := string(v)
	if dec != nil {
		var err error
		if s, err = dec(s); err != nil {
			return nil, err
		}
	}
	return ParseInteger(s)
}

// ParseInteger reads a decimal integer. The "a mod b" form some issuers
// publish is accepted and reduced.
func ParseInteger(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if a, b, ok := strings.Cut(s, "mod"); ok {
		x, err := parseDecimal(a)
		if err != nil {
			return nil, err
		}
		m, err := parseDecimal(b)
		if err != nil {
			return nil, err
		}
		if m.Sign() <= 0 {
			return nil, errwrap.Wrapf(fmt.Sprintf("non-positive modulus in %q: {{err}}", s), ErrDecode)
		}
		return x.Mod(x, m), nil
	}
	return parseDecimal(s)
}

func parseDecimal(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errwrap.Wrapf(fmt.Sprintf("%q is not a decimal integer: {{err}}", s), ErrDecode)
	}
	return v, nil
}

// ValueOf tags a dynamically typed field, as produced by a JSON or Vault
// request decoder. Anything but integers and strings is rejected.
func ValueOf(v interface{}) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case *big.Int:
		return RawInteger{Int: t}, nil
	case big.Int:
		return RawInteger{Int: &t}, nil
	case json.Number:
		i, err := parseDecimal(t.String())
		if err != nil {
			return nil, err
		}
		return RawInteger{Int: i}, nil
	case string:
		return EncodedString(t), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return RawInteger{Int: big.NewInt(rv.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return RawInteger{Int: new(big.Int).SetUint64(rv.Uint())}, nil
	}
	return nil, errwrap.Wrapf(fmt.Sprintf("%T: {{err}}", v), ErrUnsupportedValueType)
}

// FromValues resolves every tagged field and builds the key.
func FromValues(id string, n, s, z Value, r map[string]Value, dec Decoder) (*PublicKey, error) {
	resolve := func(name string, v Value) (*big.Int, error) {
		if v == nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("field %s is missing: {{err}}", name), ErrDecode)
		}
		i, err := v.resolve(dec)
		if err != nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("field %s: {{err}}", name), err)
		}
		return i, nil
	}

	nInt, err := resolve(FieldN, n)
	if err != nil {
		return nil, err
	}
	sInt, err := resolve(FieldS, s)
	if err != nil {
		return nil, err
	}
	zInt, err := resolve(FieldZ, z)
	if err != nil {
		return nil, err
	}

	rs := make(map[string]*big.Int, len(r))
	for name, v := range r {
		if rs[name], err = resolve(FieldR+"["+name+"]", v); err != nil {
			return nil, err
		}
	}
	return New(id, nInt, rs, sInt, zInt)
}

// FromMap builds a key from a decoded JSON object or Vault request body.
func FromMap(id string, m map[string]interface{}, dec Decoder) (*PublicKey, error) {
	tag := func(name string) (Value, error) {
		raw, ok := m[name]
		if !ok || raw == nil {
			return nil, nil
		}
		return ValueOf(raw)
	}

	n, err := tag(FieldN)
	if err != nil {
		return nil, err
	}
	s, err := tag(FieldS)
	if err != nil {
		return nil, err
	}
	z, err := tag(FieldZ)
	if err != nil {
		return nil, err
	}

	rawR, ok := m[FieldR].(map[string]interface{})
	if !ok && m[FieldR] != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("field R is %T: {{err}}", m[FieldR]), ErrUnsupportedValueType)
	}
	r := make(map[string]Value, len(rawR))
	for name, raw := range rawR {
		if r[name], err = ValueOf(raw); err != nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("field R[%s]: {{err}}", name), err)
		}
	}
	if _, ok := r[MasterSecretKey]; !ok {
		ms, err := tag(FieldMasterSecretRandom)
		if err != nil {
			return nil, err
		}
		if ms != nil {
			r[MasterSecretKey] = ms
		}
	}
	return FromValues(id, n, s, z, r, dec)
}
