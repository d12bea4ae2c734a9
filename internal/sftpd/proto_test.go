package sftpd

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	t.Parallel()

	payload := appendUint32(nil, 42)
	payload = appendString(payload, "hello")

	var buf bytes.Buffer
	require.NoError(t, writePacket(&buf, fxpOpen, payload))

	packetType, body, err := readPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(fxpOpen), packetType)
	assert.Equal(t, payload, body)
}

func TestReadPacketRejectsBadLength(t *testing.T) {
	t.Parallel()

	_, _, err := readPacket(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.Error(t, err)

	_, _, err = readPacket(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	require.Error(t, err)
}

func TestReadPacketShortStream(t *testing.T) {
	t.Parallel()

	// length claims ten bytes but only three follow
	data := []byte{0, 0, 0, 10, 1, 2, 3}
	_, _, err := readPacket(bytes.NewReader(data))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParserWalksFields(t *testing.T) {
	t.Parallel()

	b := appendUint32(nil, 7)
	b = appendUint64(b, 1<<40)
	b = appendString(b, "path")
	b = appendBytes(b, []byte{9, 8})

	p := &parser{buf: b}

	v32, err := p.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v32)

	v64, err := p.readUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	s, err := p.readString()
	require.NoError(t, err)
	assert.Equal(t, "path", s)

	raw, err := p.readBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8}, raw)

	_, err = p.readUint32()
	require.ErrorIs(t, err, errShortPacket)
}

func TestParserTruncatedString(t *testing.T) {
	t.Parallel()

	// declared length runs past the payload
	p := &parser{buf: appendUint32(nil, 50)}
	_, err := p.readString()
	require.ErrorIs(t, err, errShortPacket)
}
