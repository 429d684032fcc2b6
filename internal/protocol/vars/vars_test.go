package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draconet/zoneserver/internal/protocol/payload"
)

func TestVariable_RoundTrip(t *testing.T) {
	obj := payload.New()
	obj.SetInt("lvl", 3)

	cases := []Variable{
		Bool("flying", true),
		Int("score", -7),
		Double("speed", 12.75),
		String("mount", "gronckle"),
		Object("stats", obj),
	}

	for _, in := range cases {
		t.Run(in.Name, func(t *testing.T) {
			node, err := in.ToPayload()
			require.NoError(t, err)
			out, err := FromPayload(node)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestVariable_UnsupportedType(t *testing.T) {
	_, err := Variable{Name: "bad", Type: payload.TypeByteArray, Value: []byte{1}}.ToPayload()
	assert.Error(t, err)
}

func TestFromPayload_MissingValue(t *testing.T) {
	node := payload.New()
	node.SetString(KeyName, "orphan")
	_, err := FromPayload(node)
	var missing *payload.MissingKeyError
	assert.ErrorAs(t, err, &missing)
}
