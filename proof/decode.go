package proof

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	"github.com/mitchellh/mapstructure"
)

// ErrDecode reports an input that does not have the expected wire shape.
var ErrDecode = errors.New("malformed proof input")

var (
	bigIntType    = reflect.TypeOf(big.Int{})
	bigIntPtrType = reflect.TypeOf(&big.Int{})
)

// bigIntHook turns decimal strings, json.Number and integral numbers into
// *big.Int wherever the target field is a big integer.
func bigIntHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != bigIntType && t != bigIntPtrType {
		return data, nil
	}
	if f == bigIntType || f == bigIntPtrType {
		return data, nil
	}

	v := reflect.ValueOf(data)
	var out *big.Int
	switch f.Kind() {
	case reflect.String:
		i, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, fmt.Errorf("%q is not a decimal integer", v.String())
		}
		out = i
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out = big.NewInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out = new(big.Int).SetUint64(v.Uint())
	case reflect.Float32, reflect.Float64:
		fl := v.Float()
		if fl != math.Trunc(fl) || math.IsInf(fl, 0) {
			return nil, fmt.Errorf("%v is not an integer", fl)
		}
		out, _ = big.NewFloat(fl).Int(nil)
	default:
		return nil, fmt.Errorf("cannot read %s as an integer", f)
	}

	if t == bigIntType {
		return *out, nil
	}
	return out, nil
}

// Decode fills out (a pointer to one of this package's types) from a
// generic map as produced by JSON or a Vault request. Unknown fields are
// rejected.
func Decode(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  bigIntHook,
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", err), ErrDecode)
	}
	return nil
}

// DecodeJSON reads a JSON document into out through Decode, so numbers and
// decimal strings are accepted alike.
func DecodeJSON(r io.Reader, out interface{}) error {
	var raw interface{}
	if err := jsonutil.DecodeJSONFromReader(r, &raw); err != nil {
		return errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", err), ErrDecode)
	}
	return Decode(raw, out)
}
