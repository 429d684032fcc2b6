package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPayload_SetGet(t *testing.T) {
	p := New()
	p.SetBool("b", true)
	p.SetByte("by", 0x7f)
	p.SetShort("s", -12)
	p.SetInt("i", 1<<20)
	p.SetLong("l", -1<<40)
	p.SetFloat("f", 1.5)
	p.SetDouble("d", 2.25)
	p.SetString("str", "héllo")
	p.SetByteArray("ba", []byte{1, 2, 3})
	p.SetStringArray("sa", []string{"a", "b"})

	b, err := p.GetBool("b")
	require.NoError(t, err)
	assert.True(t, b)

	i, err := p.GetInt("i")
	require.NoError(t, err)
	assert.Equal(t, int32(1<<20), i)

	l, err := p.GetLong("l")
	require.NoError(t, err)
	assert.Equal(t, int64(-1<<40), l)

	str, err := p.GetString("str")
	require.NoError(t, err)
	assert.Equal(t, "héllo", str)

	ba, err := p.GetByteArray("ba")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, ba)

	assert.Equal(t, 10, p.Len())
}

func TestPayload_MissingKeyDistinctFromTypeMismatch(t *testing.T) {
	p := New()
	p.SetInt("count", 7)

	_, err := p.GetInt("absent")
	var missing *MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "absent", missing.Key)

	_, err = p.GetString("count")
	var mismatch *TypeError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "count", mismatch.Key)
	assert.Equal(t, TypeString, mismatch.Want)
	assert.Equal(t, TypeInt, mismatch.Got)

	// The two failure kinds never alias each other.
	assert.False(t, errors.As(err, &missing))
}

func TestPayload_SetReplacesSameKey(t *testing.T) {
	p := New()
	p.SetInt("score", 5)
	p.SetInt("score", 10)

	v, err := p.GetInt("score")
	require.NoError(t, err)
	assert.Equal(t, int32(10), v)
	assert.Equal(t, []string{"score"}, p.Keys())
}

func TestPayload_SetReplacesAcrossTypes(t *testing.T) {
	p := New()
	p.SetInt("v", 5)
	p.SetString("v", "five")

	_, err := p.GetInt("v")
	var mismatch *TypeError
	require.ErrorAs(t, err, &mismatch)

	s, err := p.GetString("v")
	require.NoError(t, err)
	assert.Equal(t, "five", s)
}

func TestPayload_KeysCaseSensitive(t *testing.T) {
	p := New()
	p.SetInt("Key", 1)
	p.SetInt("key", 2)

	assert.Equal(t, 2, p.Len())
	v, err := p.GetInt("Key")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestPayload_NestedRoundTrip(t *testing.T) {
	inner := New()
	inner.SetString("name", "lagoon")
	inner.SetShort("depth", 3)

	elem1 := New()
	elem1.SetInt("id", 1)
	elem2 := New()
	elem2.SetInt("id", 2)

	p := New()
	p.SetObject("room", inner)
	p.SetObjectArray("users", []*Payload{elem1, elem2})
	p.SetBool("open", false)

	raw, err := p.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)

	room, err := got.GetObject("room")
	require.NoError(t, err)
	name, err := room.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "lagoon", name)

	users, err := got.GetObjectArray("users")
	require.NoError(t, err)
	require.Len(t, users, 2)
	id, err := users[1].GetInt("id")
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
}

func TestDecode_TrailingBytes(t *testing.T) {
	p := New()
	p.SetByte("x", 1)
	raw, err := p.Encode()
	require.NoError(t, err)

	_, err = Decode(append(raw, 0xff))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestDecode_Truncated(t *testing.T) {
	p := New()
	p.SetString("k", "value")
	raw, err := p.Encode()
	require.NoError(t, err)

	for cut := 1; cut < len(raw); cut++ {
		_, err := Decode(raw[:cut])
		assert.Error(t, err, "truncation at %d bytes must fail", cut)
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	// count=1, key "k", tag 0xEE
	raw := []byte{0, 1, 0, 1, 'k', 0xEE}
	_, err := Decode(raw)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type tag")
}

// Property: any tree built from drawn scalar values survives an
// encode/decode round trip with identical field values.
func TestPropertyEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := New()
		keys := map[string]bool{}
		n := rapid.IntRange(0, 12).Draw(t, "entries")
		for i := 0; i < n; i++ {
			key := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9_]{0,8}`).Draw(t, "key")
			if keys[key] {
				continue
			}
			keys[key] = true
			switch rapid.IntRange(0, 5).Draw(t, "kind") {
			case 0:
				p.SetBool(key, rapid.Bool().Draw(t, "bool"))
			case 1:
				p.SetInt(key, rapid.Int32().Draw(t, "int"))
			case 2:
				p.SetLong(key, rapid.Int64().Draw(t, "long"))
			case 3:
				p.SetString(key, rapid.StringMatching(`[ -~]{0,32}`).Draw(t, "string"))
			case 4:
				p.SetDouble(key, rapid.Float64Range(-1e12, 1e12).Draw(t, "double"))
			case 5:
				p.SetByteArray(key, rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "bytes"))
			}
		}

		raw, err := p.Encode()
		require.NoError(t, err)
		got, err := Decode(raw)
		require.NoError(t, err)

		require.Equal(t, p.Keys(), got.Keys())
		for _, key := range p.Keys() {
			wantTag, err := p.TypeOf(key)
			require.NoError(t, err)
			gotTag, err := got.TypeOf(key)
			require.NoError(t, err)
			require.Equal(t, wantTag, gotTag)
			assert.Equal(t, p.entries[key].val, got.entries[key].val)
		}
	})
}
