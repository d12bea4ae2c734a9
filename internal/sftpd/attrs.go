package sftpd

import (
	"fmt"
	"os"
	"time"
)

// attribute flag bits
const (
	attrSize        = 0x00000001
	attrUIDGID      = 0x00000002
	attrPermissions = 0x00000004
	attrAcModTime   = 0x00000008
)

// file type bits carried in the permissions field
const (
	modeRegular  = 0100000
	modeDir      = 0040000
	modeSymlink  = 0120000
	modeSocket   = 0140000
	modeFifo     = 0010000
	modeCharDev  = 0020000
	modeBlkDev   = 0060000
	modeTypeBits = 0170000
)

// attrs is the version 3 attribute block. Fields are only encoded when
// their flag bit is set.
type attrs struct {
	flags uint32
	size  uint64
	uid   uint32
	gid   uint32
	mode  uint32
	atime uint32
	mtime uint32
}

func (a attrs) encode(b []byte) []byte {
	b = appendUint32(b, a.flags)
	if a.flags&attrSize != 0 {
		b = appendUint64(b, a.size)
	}
	if a.flags&attrUIDGID != 0 {
		b = appendUint32(b, a.uid)
		b = appendUint32(b, a.gid)
	}
	if a.flags&attrPermissions != 0 {
		b = appendUint32(b, a.mode)
	}
	if a.flags&attrAcModTime != 0 {
		b = appendUint32(b, a.atime)
		b = appendUint32(b, a.mtime)
	}
	return b
}

// statAttrs builds the attribute block reported by stat requests: size is
// always present, ownership comes from the platform layer
func statAttrs(info os.FileInfo) attrs {
	a := attrs{
		flags: attrSize | attrPermissions | attrAcModTime,
		size:  uint64(info.Size()),
		mode:  wireMode(info.Mode()),
		atime: uint32(info.ModTime().Unix()),
		mtime: uint32(info.ModTime().Unix()),
	}
	fillOwner(&a, info)
	return a
}

// entryAttrs builds the attribute block for directory listing entries;
// size is reported for regular files only
func entryAttrs(info os.FileInfo) attrs {
	a := attrs{
		flags: attrPermissions | attrAcModTime,
		mode:  wireMode(info.Mode()),
		atime: uint32(info.ModTime().Unix()),
		mtime: uint32(info.ModTime().Unix()),
	}
	if info.Mode().IsRegular() {
		a.flags |= attrSize
		a.size = uint64(info.Size())
	}
	fillOwner(&a, info)
	return a
}

// wireMode converts an os.FileMode to unix st_mode bits
func wireMode(m os.FileMode) uint32 {
	bits := uint32(m.Perm())
	switch {
	case m.IsDir():
		bits |= modeDir
	case m&os.ModeSymlink != 0:
		bits |= modeSymlink
	case m&os.ModeSocket != 0:
		bits |= modeSocket
	case m&os.ModeNamedPipe != 0:
		bits |= modeFifo
	case m&os.ModeCharDevice != 0:
		bits |= modeCharDev
	case m&os.ModeDevice != 0:
		bits |= modeBlkDev
	default:
		bits |= modeRegular
	}
	return bits
}

// longname renders the ls style line carried next to each name in
// directory listings
func longname(name string, a attrs) string {
	mtime := time.Unix(int64(a.mtime), 0)
	var when string
	if time.Since(mtime) < 6*30*24*time.Hour {
		when = mtime.Format("Jan _2 15:04")
	} else {
		when = mtime.Format("Jan _2  2006")
	}
	return fmt.Sprintf("%s %3d %-8d %-8d %8d %s %s",
		modeString(a.mode), 1, a.uid, a.gid, a.size, when, name)
}

func modeString(mode uint32) string {
	b := []byte("----------")
	switch mode & modeTypeBits {
	case modeDir:
		b[0] = 'd'
	case modeSymlink:
		b[0] = 'l'
	case modeSocket:
		b[0] = 's'
	case modeFifo:
		b[0] = 'p'
	case modeCharDev:
		b[0] = 'c'
	case modeBlkDev:
		b[0] = 'b'
	}
	const rwx = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			b[i+1] = rwx[i]
		}
	}
	return string(b)
}
