//go:build unix

package sftpd

import (
	"os"
	"syscall"
)

// fillOwner copies ownership and the exact mode bits from the underlying
// stat record
func fillOwner(a *attrs, info os.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	a.flags |= attrUIDGID
	a.uid = st.Uid
	a.gid = st.Gid
	a.mode = uint32(st.Mode)
}
