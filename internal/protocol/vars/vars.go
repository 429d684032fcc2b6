// Package vars models named, typed, last-write-wins variables attached to
// rooms and to a user's presence in a room, plus their wire form. A
// variable's wire form is one payload node holding the name under "n" and
// the value under "v" with its own type tag, so the tree stays
// self-describing.
package vars

import (
	"fmt"

	"github.com/draconet/zoneserver/internal/protocol/payload"
)

// Node keys of a serialized variable.
const (
	KeyName  = "n"
	KeyValue = "v"
)

// Variable is one named typed value. Supported value types are bool, int,
// double, string and nested object.
type Variable struct {
	Name  string
	Type  payload.Type
	Value any
}

func Bool(name string, v bool) Variable {
	return Variable{Name: name, Type: payload.TypeBool, Value: v}
}

func Int(name string, v int32) Variable {
	return Variable{Name: name, Type: payload.TypeInt, Value: v}
}

func Double(name string, v float64) Variable {
	return Variable{Name: name, Type: payload.TypeDouble, Value: v}
}

func String(name string, v string) Variable {
	return Variable{Name: name, Type: payload.TypeString, Value: v}
}

func Object(name string, v *payload.Payload) Variable {
	return Variable{Name: name, Type: payload.TypeObject, Value: v}
}

// ToPayload serializes the variable to its wire node.
func (v Variable) ToPayload() (*payload.Payload, error) {
	p := payload.New()
	p.SetString(KeyName, v.Name)
	switch v.Type {
	case payload.TypeBool:
		p.SetBool(KeyValue, v.Value.(bool))
	case payload.TypeInt:
		p.SetInt(KeyValue, v.Value.(int32))
	case payload.TypeDouble:
		p.SetDouble(KeyValue, v.Value.(float64))
	case payload.TypeString:
		p.SetString(KeyValue, v.Value.(string))
	case payload.TypeObject:
		p.SetObject(KeyValue, v.Value.(*payload.Payload))
	default:
		return nil, fmt.Errorf("vars: unsupported variable type %s", v.Type)
	}
	return p, nil
}

// FromPayload parses a variable from its wire node, driven by the value's
// own type tag.
func FromPayload(p *payload.Payload) (Variable, error) {
	name, err := p.GetString(KeyName)
	if err != nil {
		return Variable{}, err
	}
	tag, err := p.TypeOf(KeyValue)
	if err != nil {
		return Variable{}, err
	}

	var value any
	switch tag {
	case payload.TypeBool:
		value, err = p.GetBool(KeyValue)
	case payload.TypeInt:
		value, err = p.GetInt(KeyValue)
	case payload.TypeDouble:
		value, err = p.GetDouble(KeyValue)
	case payload.TypeString:
		value, err = p.GetString(KeyValue)
	case payload.TypeObject:
		value, err = p.GetObject(KeyValue)
	default:
		return Variable{}, fmt.Errorf("vars: unsupported variable type %s", tag)
	}
	if err != nil {
		return Variable{}, err
	}
	return Variable{Name: name, Type: tag, Value: value}, nil
}
