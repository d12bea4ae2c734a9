package sftpd

import (
	"fmt"
	"os"
)

// openHandle is the state behind one issued handle id: an open file, or a
// directory with its entry names materialized at opendir time
type openHandle struct {
	isDir   bool
	path    string
	file    *os.File // nil for directory handles
	entries []string // directory handles only
	cursor  int
}

// handleTable issues session-scoped handle ids and owns the open handles.
// The counter starts at 1 and is never reused, so a closed id can never
// be mistaken for a later one.
type handleTable struct {
	handles map[string]*openHandle
	nextID  uint64
}

func newHandleTable() *handleTable {
	return &handleTable{
		handles: make(map[string]*openHandle),
		nextID:  1,
	}
}

// add stores the handle and returns its fresh id
func (t *handleTable) add(h *openHandle) string {
	id := fmt.Sprintf("handle_%d", t.nextID)
	t.nextID++
	t.handles[id] = h
	return id
}

func (t *handleTable) get(id string) (*openHandle, bool) {
	h, ok := t.handles[id]
	return h, ok
}

// remove drops the handle from the table and returns it, or nil when the
// id is unknown. The caller owns closing any file descriptor.
func (t *handleTable) remove(id string) *openHandle {
	h, ok := t.handles[id]
	if !ok {
		return nil
	}
	delete(t.handles, id)
	return h
}

// closeAll releases every descriptor still open; used at channel teardown
func (t *handleTable) closeAll() {
	for id, h := range t.handles {
		if h.file != nil {
			h.file.Close()
		}
		delete(t.handles, id)
	}
}
