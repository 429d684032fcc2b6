package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func roundTrip(t *testing.T, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	c := NewConn(&buf, 0, 0)
	require.NoError(t, c.WriteFrame(body, false))
	got, err := c.ReadFrame()
	require.NoError(t, err)
	return got
}

func TestConn_RoundTripSmall(t *testing.T) {
	body := []byte("hello zone")
	assert.Equal(t, body, roundTrip(t, body))
}

func TestConn_RoundTripEmpty(t *testing.T) {
	assert.Empty(t, roundTrip(t, nil))
}

func TestConn_LargeLengthBit(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 32768)

	var buf bytes.Buffer
	c := NewConn(&buf, 0, 0)
	require.NoError(t, c.WriteFrame(body, false))

	raw := buf.Bytes()
	assert.NotZero(t, raw[0]&FlagLargeSize, "large-length bit must be set past signed short range")
	assert.Zero(t, raw[0]&FlagCompressed)
	assert.Equal(t, uint32(32768), binary.BigEndian.Uint32(raw[1:5]))

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestConn_ShortLengthBelowThreshold(t *testing.T) {
	body := bytes.Repeat([]byte{0x01}, 32767)

	var buf bytes.Buffer
	c := NewConn(&buf, 0, 0)
	require.NoError(t, c.WriteFrame(body, false))

	raw := buf.Bytes()
	assert.Zero(t, raw[0]&FlagLargeSize)
	assert.Equal(t, uint16(32767), binary.BigEndian.Uint16(raw[1:3]))
}

func TestConn_CompressionAtThreshold(t *testing.T) {
	body := bytes.Repeat([]byte("draconet"), CompressThreshold/8)
	require.Len(t, body, CompressThreshold)

	var buf bytes.Buffer
	c := NewConn(&buf, 0, 0)
	require.NoError(t, c.WriteFrame(body, false))

	raw := buf.Bytes()
	require.NotZero(t, raw[0]&FlagCompressed, "compressed bit must be set at threshold")

	// The stored body is the deflated form; reading inflates it back.
	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestConn_SmallCompressedFrameStillInflated(t *testing.T) {
	// Decompression is driven by the bit alone, not by size.
	original := []byte("tiny but compressed")
	var deflated bytes.Buffer
	w, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(original)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var wire bytes.Buffer
	wire.WriteByte(FlagCompressed)
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(deflated.Len()))
	wire.Write(lenBytes[:])
	wire.Write(deflated.Bytes())

	c := NewConn(&wire, 0, 0)
	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestConn_WriteEncryptedRejected(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, 0, 0)
	err := c.WriteFrame([]byte("secret"), true)
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
	assert.Zero(t, buf.Len(), "no plaintext may be sent when encryption was requested")
}

func TestConn_ReadEncryptedRejected(t *testing.T) {
	wire := bytes.NewBuffer([]byte{FlagEncrypted, 0, 1, 0x00})
	c := NewConn(wire, 0, 0)
	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}

func TestConn_UnknownFlagIsFramingError(t *testing.T) {
	wire := bytes.NewBuffer([]byte{0x02, 0, 0})
	c := NewConn(wire, 0, 0)
	_, err := c.ReadFrame()
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
}

func TestConn_TruncatedBodyIsFramingError(t *testing.T) {
	wire := bytes.NewBuffer([]byte{0x00, 0, 10, 'x', 'y'})
	c := NewConn(wire, 0, 0)
	_, err := c.ReadFrame()
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
}

func TestConn_ConcurrentWritersDoNotInterleave(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	lockedWriter := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	})

	c := NewConn(struct {
		writerFunc
		*bytes.Reader
	}{lockedWriter, bytes.NewReader(nil)}, 0, 0)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				body := []byte(fmt.Sprintf("writer-%d-frame-%d", w, i))
				assert.NoError(t, c.WriteFrame(body, false))
			}
		}(w)
	}
	wg.Wait()

	reader := NewConn(&buf, 0, 0)
	for i := 0; i < writers*perWriter; i++ {
		body, err := reader.ReadFrame()
		require.NoError(t, err, "frame %d must have intact boundaries", i)
		assert.Regexp(t, `^writer-\d+-frame-\d+$`, string(body))
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Property: every body below the compression threshold survives a frame
// round trip byte for byte.
func TestPropertyFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.SliceOfN(rapid.Byte(), 0, 70_000).Draw(t, "body")
		var buf bytes.Buffer
		c := NewConn(&buf, 0, 0)
		require.NoError(t, c.WriteFrame(body, false))
		got, err := c.ReadFrame()
		require.NoError(t, err)
		if len(body) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, body, got)
		}
	})
}
