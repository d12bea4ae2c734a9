package sftpd

import (
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
)

// protocol version served to clients
const protocolVersion = 3

// maximum accepted frame size; anything larger is a broken stream
const maxPacketSize = 256 * 1024

// maximum bytes returned by a single read request
const maxReadLength = 128 * 1024

// packet types from the version 3 dialect
const (
	fxpInit     = 1
	fxpVersion  = 2
	fxpOpen     = 3
	fxpClose    = 4
	fxpRead     = 5
	fxpWrite    = 6
	fxpLstat    = 7
	fxpFstat    = 8
	fxpSetstat  = 9
	fxpFsetstat = 10
	fxpOpendir  = 11
	fxpReaddir  = 12
	fxpRemove   = 13
	fxpMkdir    = 14
	fxpRmdir    = 15
	fxpRealpath = 16
	fxpStat     = 17
	fxpRename   = 18
	fxpReadlink = 19
	fxpSymlink  = 20

	fxpStatus = 101
	fxpHandle = 102
	fxpData   = 103
	fxpName   = 104
	fxpAttrs  = 105

	fxpExtended      = 200
	fxpExtendedReply = 201
)

// status codes
const (
	fxOk               = 0
	fxEOF              = 1
	fxNoSuchFile       = 2
	fxPermissionDenied = 3
	fxFailure          = 4
	fxBadMessage       = 5
	fxNoConnection     = 6
	fxConnectionLost   = 7
	fxOpUnsupported    = 8
)

// open request flag bits
const (
	flagRead     = 0x00000001
	flagWrite    = 0x00000002
	flagAppend   = 0x00000004
	flagCreate   = 0x00000008
	flagTruncate = 0x00000010
	flagExcl     = 0x00000020
)

var errShortPacket = errors.New("packet too short")

// readPacket reads one length-prefixed frame and returns its type byte
// and remaining payload
func readPacket(r io.Reader) (byte, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > maxPacketSize {
		return 0, nil, errors.Errorf("invalid packet length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

// writePacket frames and writes one packet in a single write
func writePacket(w io.Writer, packetType byte, payload []byte) error {
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload))+1)
	buf[4] = packetType
	copy(buf[5:], payload)

	_, err := w.Write(buf)
	return err
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	b = appendUint32(b, uint32(v>>32))
	return appendUint32(b, uint32(v))
}

func appendString(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendBytes(b []byte, p []byte) []byte {
	b = appendUint32(b, uint32(len(p)))
	return append(b, p...)
}

// parser walks a packet payload front to back
type parser struct {
	buf []byte
	off int
}

func (p *parser) readUint32() (uint32, error) {
	if p.off+4 > len(p.buf) {
		return 0, errShortPacket
	}
	v := binary.BigEndian.Uint32(p.buf[p.off:])
	p.off += 4
	return v, nil
}

func (p *parser) readUint64() (uint64, error) {
	if p.off+8 > len(p.buf) {
		return 0, errShortPacket
	}
	v := binary.BigEndian.Uint64(p.buf[p.off:])
	p.off += 8
	return v, nil
}

func (p *parser) readString() (string, error) {
	b, err := p.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *parser) readBytes() ([]byte, error) {
	length, err := p.readUint32()
	if err != nil {
		return nil, err
	}
	if p.off+int(length) > len(p.buf) {
		return nil, errShortPacket
	}
	b := p.buf[p.off : p.off+int(length)]
	p.off += int(length)
	return b, nil
}
