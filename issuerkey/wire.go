package issuerkey

const (
	FieldN                  = "N"
	FieldS                  = "S"
	FieldZ                  = "Z"
	FieldR                  = "R"
	FieldMasterSecretRandom = "masterSecretRandom"
)

// Wire is the published form of a key. Integers are decimal strings.
type Wire struct {
	ID string            `json:"id,omitempty" mapstructure:"id"`
	N  string            `json:"N" mapstructure:"N"`
	S  string            `json:"S" mapstructure:"S"`
	Z  string            `json:"Z" mapstructure:"Z"`
	R  map[string]string `json:"R" mapstructure:"R"`

	// MasterSecretRandom repeats R["0"] for older consumers.
	MasterSecretRandom string `json:"masterSecretRandom,omitempty" mapstructure:"masterSecretRandom"`
}

// FromWire decodes a published key. dec may be nil for plain decimal.
func FromWire(w Wire, dec Decoder) (*PublicKey, error) {
	var n, s, z Value
	if w.N != "" {
		n = EncodedString(w.N)
	}
	if w.S != "" {
		s = EncodedString(w.S)
	}
	if w.Z != "" {
		z = EncodedString(w.Z)
	}
	r := make(map[string]Value, len(w.R))
	for name, v := range w.R {
		r[name] = EncodedString(v)
	}
	if _, ok := r[MasterSecretKey]; !ok && w.MasterSecretRandom != "" {
		r[MasterSecretKey] = EncodedString(w.MasterSecretRandom)
	}
	return FromValues(w.ID, n, s, z, r, dec)
}

// ToWire renders the key as decimal strings. encoding/json emits R sorted
// by key, which is the canonical order.
func (k *PublicKey) ToWire() Wire {
	r := make(map[string]string, len(k.r))
	for _, name := range k.AttrNames() {
		r[name] = k.r[name].String()
	}
	return Wire{
		ID: k.id,
		N:  k.n.String(),
		S:  k.s.String(),
		Z:  k.z.String(),
		R:  r,
	}
}

// ToWireWithMasterSecret is ToWire plus the top-level master secret
// generator.
func (k *PublicKey) ToWireWithMasterSecret() Wire {
	w := k.ToWire()
	w.MasterSecretRandom = w.R[MasterSecretKey]
	return w
}
