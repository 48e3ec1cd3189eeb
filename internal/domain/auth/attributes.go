package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Value is a directory attribute value: absent, a single string, or a list of strings.
//
// Directory attributes are multi-valued; NewValue collapses a zero-length list to absent
// and a one-element list to a scalar. Longer lists are kept unchanged.
type Value struct {
	vals []string
}

// NewValue applies the collapse rule to raw directory values.
func NewValue(vals []string) Value {
	if len(vals) == 0 {
		return Value{}
	}
	return Value{vals: slices.Clone(vals)}
}

// Scalar returns a single-string value.
func Scalar(s string) Value { return Value{vals: []string{s}} }

// IsAbsent reports whether the value carries nothing.
func (v Value) IsAbsent() bool { return len(v.vals) == 0 }

// IsScalar reports whether the value collapsed to a single string.
func (v Value) IsScalar() bool { return len(v.vals) == 1 }

// IsList reports whether the value holds more than one string.
func (v Value) IsList() bool { return len(v.vals) > 1 }

// String returns the scalar, the first element of a list, or "" when absent.
func (v Value) String() string {
	if len(v.vals) == 0 {
		return ""
	}
	return v.vals[0]
}

// Strings returns every element; nil when absent.
func (v Value) Strings() []string { return slices.Clone(v.vals) }

// Equal compares two values element by element.
func (v Value) Equal(o Value) bool { return slices.Equal(v.vals, o.vals) }

// Any returns nil, a string, or a []any; the shape generic evaluators expect.
func (v Value) Any() any {
	switch len(v.vals) {
	case 0:
		return nil
	case 1:
		return v.vals[0]
	default:
		out := make([]any, len(v.vals))
		for i, s := range v.vals {
			out[i] = s
		}
		return out
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch len(v.vals) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(v.vals[0])
	default:
		return json.Marshal(v.vals)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = NewValue(list)
		return nil
	default:
		return fmt.Errorf("attribute value must be null, a string, or a list of strings: %s", data)
	}
}

// Attributes is an ordered mapping from attribute name to Value. The zero value is empty
// and ready to use.
type Attributes struct {
	names  []string
	values map[string]Value
}

// Set adds or replaces an attribute, keeping the original position of existing names.
func (a *Attributes) Set(name string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = v
}

// SetValues applies the collapse rule to raw values and stores the result.
func (a *Attributes) SetValues(name string, vals []string) { a.Set(name, NewValue(vals)) }

// Get returns the value of name and whether it is present in the mapping.
func (a Attributes) Get(name string) (Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// First returns the first string of name, or "" when missing or absent.
func (a Attributes) First(name string) string {
	return a.values[name].String()
}

// Names returns attribute names in insertion order.
func (a Attributes) Names() []string { return slices.Clone(a.names) }

// Len is the number of attributes, absent ones included.
func (a Attributes) Len() int { return len(a.names) }

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	out := Attributes{names: slices.Clone(a.names)}
	if a.values != nil {
		out.values = make(map[string]Value, len(a.values))
		for k, v := range a.values {
			out.values[k] = NewValue(v.vals)
		}
	}
	return out
}

// Equal compares names and values; ordering is not significant.
func (a Attributes) Equal(o Attributes) bool {
	if len(a.names) != len(o.names) {
		return false
	}
	for name, v := range a.values {
		ov, ok := o.values[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Map returns a generic document view (nil, string, or []any per attribute).
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.names))
	for _, name := range a.names {
		out[name] = a.values[name].Any()
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := a.values[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errNotObject = errors.New("attributes must be a JSON object")

// UnmarshalJSON decodes an object, preserving member order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	*a = Attributes{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errNotObject
		}
		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return err
		}
		var v Value
		if err = v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		a.Set(name, v)
	}
	if _, err = dec.Token(); err != nil {
		return err
	}
	return nil
}

// identityJSON is the serialized form used by session backends that cannot hold
// pointers. The resolved manager chain is kept; reports are dropped because they may
// point back up the tree.
type identityJSON struct {
	LoginName     string     `json:"login_name"`
	DN            string     `json:"dn"`
	Mail          string     `json:"mail,omitempty"`
	PrincipalName string     `json:"principal_name,omitempty"`
	ManagerDN     string     `json:"manager_dn,omitempty"`
	ReportDNs     []string   `json:"report_dns,omitempty"`
	Attributes    Attributes `json:"attributes"`
	Manager       *Identity  `json:"manager,omitempty"`
}

func (id Identity) MarshalJSON() ([]byte, error) {
	out := identityJSON{
		LoginName:     id.LoginName,
		DN:            id.DN,
		Mail:          id.Mail,
		PrincipalName: id.PrincipalName,
		ManagerDN:     id.ManagerDN,
		ReportDNs:     id.ReportDNs,
		Attributes:    id.Attributes,
	}
	// Guard against manager cycles built in memory.
	seen := map[string]bool{id.DN: true}
	var chain []*Identity
	for m := id.Manager; m != nil && !seen[m.DN]; m = m.Manager {
		seen[m.DN] = true
		chain = append(chain, m)
	}
	if len(chain) > 0 {
		out.Manager = trimChain(chain)
	}
	return json.Marshal(out)
}

// trimChain copies a manager chain without reports so encoding terminates.
func trimChain(chain []*Identity) *Identity {
	var next *Identity
	for i := len(chain) - 1; i >= 0; i-- {
		m := *chain[i]
		m.Reports = nil
		m.Manager = next
		next = &m
	}
	return next
}

func (id *Identity) UnmarshalJSON(data []byte) error {
	var in identityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*id = Identity{
		LoginName:     in.LoginName,
		DN:            in.DN,
		Mail:          in.Mail,
		PrincipalName: in.PrincipalName,
		ManagerDN:     in.ManagerDN,
		ReportDNs:     in.ReportDNs,
		Attributes:    in.Attributes,
		Manager:       in.Manager,
	}
	return nil
}
