package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Wire layout per node: int16 entry count, then for each entry a UTF key
// (uint16 length prefix), a one-byte type tag, and the tag-specific value
// encoding. All integers are big-endian. Nested objects recurse inline.

// Encode serializes the tree to wire bytes.
func (p *Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encodeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Payload) encodeTo(buf *bytes.Buffer) error {
	if len(p.order) > math.MaxInt16 {
		return fmt.Errorf("payload: %d entries exceeds node limit", len(p.order))
	}
	writeInt16(buf, int16(len(p.order)))

	for _, key := range p.order {
		e := p.entries[key]
		if err := writeUTF(buf, key); err != nil {
			return fmt.Errorf("payload: key %q: %w", key, err)
		}
		buf.WriteByte(byte(e.tag))
		if err := encodeValue(buf, e); err != nil {
			return fmt.Errorf("payload: key %q: %w", key, err)
		}
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, e entry) error {
	switch e.tag {
	case TypeBool:
		if e.val.(bool) {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case TypeByte:
		buf.WriteByte(e.val.(byte))
	case TypeShort:
		writeInt16(buf, e.val.(int16))
	case TypeInt:
		writeInt32(buf, e.val.(int32))
	case TypeLong:
		writeInt64(buf, e.val.(int64))
	case TypeFloat:
		writeInt32(buf, int32(math.Float32bits(e.val.(float32))))
	case TypeDouble:
		writeInt64(buf, int64(math.Float64bits(e.val.(float64))))
	case TypeString:
		return writeUTF(buf, e.val.(string))
	case TypeByteArray:
		b := e.val.([]byte)
		if len(b) > math.MaxInt32 {
			return fmt.Errorf("byte array of %d bytes exceeds limit", len(b))
		}
		writeInt32(buf, int32(len(b)))
		buf.Write(b)
	case TypeStringArray:
		ss := e.val.([]string)
		if len(ss) > math.MaxInt16 {
			return fmt.Errorf("string array of %d elements exceeds limit", len(ss))
		}
		writeInt16(buf, int16(len(ss)))
		for _, s := range ss {
			if err := writeUTF(buf, s); err != nil {
				return err
			}
		}
	case TypeObjectArray:
		objs := e.val.([]*Payload)
		if len(objs) > math.MaxInt16 {
			return fmt.Errorf("object array of %d elements exceeds limit", len(objs))
		}
		writeInt16(buf, int16(len(objs)))
		for _, o := range objs {
			if err := o.encodeTo(buf); err != nil {
				return err
			}
		}
	case TypeObject:
		return e.val.(*Payload).encodeTo(buf)
	default:
		return fmt.Errorf("unencodable type tag %d", e.tag)
	}
	return nil
}

// Decode parses wire bytes into a tree. Trailing bytes after the root node
// are an error.
func Decode(data []byte) (*Payload, error) {
	r := bytes.NewReader(data)
	p, err := decodeFrom(r)
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("payload: %d trailing bytes after root node", r.Len())
	}
	return p, nil
}

func decodeFrom(r *bytes.Reader) (*Payload, error) {
	count, err := readInt16(r)
	if err != nil {
		return nil, fmt.Errorf("payload: reading entry count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("payload: negative entry count %d", count)
	}

	p := New()
	for i := int16(0); i < count; i++ {
		key, err := readUTF(r)
		if err != nil {
			return nil, fmt.Errorf("payload: reading key: %w", err)
		}
		if p.Has(key) {
			return nil, fmt.Errorf("payload: duplicate key %q", key)
		}
		tagByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("payload: reading tag for %q: %w", key, err)
		}
		if err := decodeValue(r, p, key, Type(tagByte)); err != nil {
			return nil, fmt.Errorf("payload: key %q: %w", key, err)
		}
	}
	return p, nil
}

func decodeValue(r *bytes.Reader, p *Payload, key string, tag Type) error {
	switch tag {
	case TypeBool:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		p.SetBool(key, b != 0)
	case TypeByte:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		p.SetByte(key, b)
	case TypeShort:
		v, err := readInt16(r)
		if err != nil {
			return err
		}
		p.SetShort(key, v)
	case TypeInt:
		v, err := readInt32(r)
		if err != nil {
			return err
		}
		p.SetInt(key, v)
	case TypeLong:
		v, err := readInt64(r)
		if err != nil {
			return err
		}
		p.SetLong(key, v)
	case TypeFloat:
		v, err := readInt32(r)
		if err != nil {
			return err
		}
		p.SetFloat(key, math.Float32frombits(uint32(v)))
	case TypeDouble:
		v, err := readInt64(r)
		if err != nil {
			return err
		}
		p.SetDouble(key, math.Float64frombits(uint64(v)))
	case TypeString:
		s, err := readUTF(r)
		if err != nil {
			return err
		}
		p.SetString(key, s)
	case TypeByteArray:
		n, err := readInt32(r)
		if err != nil {
			return err
		}
		if n < 0 || int(n) > r.Len() {
			return fmt.Errorf("byte array length %d out of range", n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return err
		}
		p.SetByteArray(key, b)
	case TypeStringArray:
		n, err := readInt16(r)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("string array length %d out of range", n)
		}
		ss := make([]string, n)
		for i := range ss {
			if ss[i], err = readUTF(r); err != nil {
				return err
			}
		}
		p.SetStringArray(key, ss)
	case TypeObjectArray:
		n, err := readInt16(r)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("object array length %d out of range", n)
		}
		objs := make([]*Payload, n)
		for i := range objs {
			if objs[i], err = decodeFrom(r); err != nil {
				return err
			}
		}
		p.SetObjectArray(key, objs)
	case TypeObject:
		child, err := decodeFrom(r)
		if err != nil {
			return err
		}
		p.SetObject(key, child)
	default:
		return fmt.Errorf("unknown type tag %d", tag)
	}
	return nil
}

func writeInt16(buf *bytes.Buffer, v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeUTF(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds UTF field limit", len(s))
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
	return nil
}

func readInt16(r *bytes.Reader) (int16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b[:])), nil
}

func readInt32(r *bytes.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func readUTF(r *bytes.Reader) (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(b[:])
	s := make([]byte, n)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", err
	}
	return string(s), nil
}
