// Package payload implements the self-describing typed key/value tree that
// forms the body of every wire packet. Values are tagged with an explicit
// type; reading a key back with a different type is an error, never a
// coercion. Keys are case-sensitive and unique within one node.
package payload

// Type tags a stored value. The tag is written to the wire ahead of each
// value so a decoded tree is self-describing.
type Type byte

const (
	TypeBool Type = iota + 1
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeByteArray
	TypeStringArray
	TypeObjectArray
	TypeObject
)

// String returns the tag name used in error messages.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeByteArray:
		return "byte_array"
	case TypeStringArray:
		return "string_array"
	case TypeObjectArray:
		return "object_array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

type entry struct {
	tag Type
	val any
}

// Payload is one node of the typed tree. The zero value is not usable;
// construct with New. Not safe for concurrent mutation.
type Payload struct {
	entries map[string]entry
	order   []string
}

// New creates an empty Payload node.
func New() *Payload {
	return &Payload{entries: make(map[string]entry)}
}

// Has reports whether key is present, regardless of its type.
func (p *Payload) Has(key string) bool {
	_, ok := p.entries[key]
	return ok
}

// Keys returns the keys in insertion order. Setting an existing key keeps
// its original position.
func (p *Payload) Keys() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of entries in this node.
func (p *Payload) Len() int {
	return len(p.entries)
}

// TypeOf returns the declared type of key, or an error if the key is absent.
func (p *Payload) TypeOf(key string) (Type, error) {
	e, ok := p.entries[key]
	if !ok {
		return 0, &MissingKeyError{Key: key}
	}
	return e.tag, nil
}

func (p *Payload) set(key string, tag Type, val any) {
	if _, exists := p.entries[key]; !exists {
		p.order = append(p.order, key)
	}
	p.entries[key] = entry{tag: tag, val: val}
}

// get fails closed: a missing key and a present key of the wrong type are
// distinct error conditions so callers can assert the exact failure kind.
func (p *Payload) get(key string, want Type) (any, error) {
	e, ok := p.entries[key]
	if !ok {
		return nil, &MissingKeyError{Key: key}
	}
	if e.tag != want {
		return nil, &TypeError{Key: key, Want: want, Got: e.tag}
	}
	return e.val, nil
}

func (p *Payload) SetBool(key string, v bool)      { p.set(key, TypeBool, v) }
func (p *Payload) SetByte(key string, v byte)      { p.set(key, TypeByte, v) }
func (p *Payload) SetShort(key string, v int16)    { p.set(key, TypeShort, v) }
func (p *Payload) SetInt(key string, v int32)      { p.set(key, TypeInt, v) }
func (p *Payload) SetLong(key string, v int64)     { p.set(key, TypeLong, v) }
func (p *Payload) SetFloat(key string, v float32)  { p.set(key, TypeFloat, v) }
func (p *Payload) SetDouble(key string, v float64) { p.set(key, TypeDouble, v) }
func (p *Payload) SetString(key string, v string)  { p.set(key, TypeString, v) }

func (p *Payload) SetByteArray(key string, v []byte) {
	p.set(key, TypeByteArray, append([]byte(nil), v...))
}

func (p *Payload) SetStringArray(key string, v []string) {
	p.set(key, TypeStringArray, append([]string(nil), v...))
}

// SetObjectArray stores an array of nested nodes. The slice header is
// copied; the nodes themselves are shared.
func (p *Payload) SetObjectArray(key string, v []*Payload) {
	p.set(key, TypeObjectArray, append([]*Payload(nil), v...))
}

// SetObject nests child under key. The child is shared, not copied.
func (p *Payload) SetObject(key string, child *Payload) {
	p.set(key, TypeObject, child)
}

func (p *Payload) GetBool(key string) (bool, error) {
	v, err := p.get(key, TypeBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (p *Payload) GetByte(key string) (byte, error) {
	v, err := p.get(key, TypeByte)
	if err != nil {
		return 0, err
	}
	return v.(byte), nil
}

func (p *Payload) GetShort(key string) (int16, error) {
	v, err := p.get(key, TypeShort)
	if err != nil {
		return 0, err
	}
	return v.(int16), nil
}

func (p *Payload) GetInt(key string) (int32, error) {
	v, err := p.get(key, TypeInt)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (p *Payload) GetLong(key string) (int64, error) {
	v, err := p.get(key, TypeLong)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (p *Payload) GetFloat(key string) (float32, error) {
	v, err := p.get(key, TypeFloat)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func (p *Payload) GetDouble(key string) (float64, error) {
	v, err := p.get(key, TypeDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (p *Payload) GetString(key string) (string, error) {
	v, err := p.get(key, TypeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Payload) GetByteArray(key string) ([]byte, error) {
	v, err := p.get(key, TypeByteArray)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (p *Payload) GetStringArray(key string) ([]string, error) {
	v, err := p.get(key, TypeStringArray)
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (p *Payload) GetObjectArray(key string) ([]*Payload, error) {
	v, err := p.get(key, TypeObjectArray)
	if err != nil {
		return nil, err
	}
	return v.([]*Payload), nil
}

func (p *Payload) GetObject(key string) (*Payload, error) {
	v, err := p.get(key, TypeObject)
	if err != nil {
		return nil, err
	}
	return v.(*Payload), nil
}
