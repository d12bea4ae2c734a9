// Package sftpd implements the server side of SFTP version 3 over a byte
// stream. Every path a client names is resolved through the jail before
// it touches the filesystem.
package sftpd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sftpgate/internal/common/logger"
	"sftpgate/internal/jail"
	"sftpgate/internal/metrics"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// entries returned per readdir reply
const readdirBatch = 100

// Session serves one subsystem channel. It owns its handle table and is
// never shared between channels.
type Session struct {
	lg      *zap.SugaredLogger
	rootDir string
	metrics *metrics.Metrics

	versionSet    bool
	clientVersion uint32
	handles       *handleTable
}

// NewSession creates the protocol handler for one channel. rootDir is the
// jail root snapshot taken when the subsystem request was accepted.
func NewSession(ctx context.Context, rootDir string, m *metrics.Metrics) *Session {
	return &Session{
		lg:      logger.FromContext(ctx).Named("sftp"),
		rootDir: rootDir,
		metrics: m,
		handles: newHandleTable(),
	}
}

// Serve reads request frames from rw until the stream ends or a protocol
// violation makes the channel unusable. Per-operation failures become
// status replies and never end the loop.
func (s *Session) Serve(rw io.ReadWriter) error {
	defer s.handles.closeAll()

	for {
		packetType, payload, err := readPacket(rw)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.lg.Debug("Channel stream ended")
				return nil
			}
			return errors.Wrap(err, "read packet")
		}

		if err := s.dispatch(rw, packetType, payload); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(w io.Writer, packetType byte, payload []byte) error {
	p := &parser{buf: payload}

	if packetType == fxpInit {
		return s.handleInit(w, p)
	}

	if !s.versionSet {
		s.lg.Error("Request received before init")
		id, _ := p.readUint32()
		s.writeStatus(w, id, fxConnectionLost, "protocol not initialized")
		return errors.New("request before init")
	}

	id, err := p.readUint32()
	if err != nil {
		return errors.Wrap(err, "request id")
	}

	switch packetType {
	case fxpOpen:
		return s.handleOpen(w, id, p)
	case fxpClose:
		return s.handleClose(w, id, p)
	case fxpRead:
		return s.handleRead(w, id, p)
	case fxpWrite:
		return s.handleWrite(w, id, p)
	case fxpOpendir:
		return s.handleOpendir(w, id, p)
	case fxpReaddir:
		return s.handleReaddir(w, id, p)
	case fxpRemove:
		return s.handleRemove(w, id, p)
	case fxpMkdir:
		return s.handleMkdir(w, id, p)
	case fxpRmdir:
		return s.handleRmdir(w, id, p)
	case fxpRealpath:
		return s.handleRealpath(w, id, p)
	case fxpStat:
		return s.handleStat(w, id, p)
	case fxpRename:
		return s.handleRename(w, id, p)
	default:
		s.lg.Warnf("Unsupported request type %d", packetType)
		return s.writeStatus(w, id, fxOpUnsupported, "")
	}
}

func (s *Session) handleInit(w io.Writer, p *parser) error {
	if s.versionSet {
		s.lg.Error("Duplicate init packet")
		s.writeStatus(w, 0, fxConnectionLost, "duplicate init")
		return errors.New("duplicate init packet")
	}

	clientVersion, err := p.readUint32()
	if err != nil {
		return errors.Wrap(err, "init version")
	}

	s.versionSet = true
	s.clientVersion = clientVersion
	s.lg.Infof("SFTP session initialized, client version %d", clientVersion)

	return writePacket(w, fxpVersion, appendUint32(nil, protocolVersion))
}

func (s *Session) handleOpen(w io.Writer, id uint32, p *parser) error {
	filename, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	pflags, err := p.readUint32()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Open %q flags %#x", filename, pflags)

	path, err := jail.Resolve(filename, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", filename, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	// create-mode opens may target a directory that does not exist yet
	if pflags&flagCreate != 0 {
		parent := filepath.Dir(path)
		if _, err := os.Stat(parent); os.IsNotExist(err) {
			s.lg.Infof("Creating parent directories for %s", path)
			if err := os.MkdirAll(parent, 0755); err != nil {
				s.lg.Errorf("Failed to create parent directories: %v", err)
				return s.writeStatus(w, id, fxPermissionDenied, "")
			}
		}
	}

	file, err := os.OpenFile(path, openFileFlags(pflags), 0644)
	if err != nil {
		s.lg.Errorf("Failed to open %s: %v", path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}

	handleID := s.handles.add(&openHandle{path: path, file: file})
	s.lg.Debugf("Created handle %s for %s", handleID, path)
	return s.writeHandle(w, id, handleID)
}

func openFileFlags(pflags uint32) int {
	var flags int
	switch {
	case pflags&flagRead != 0 && pflags&flagWrite != 0:
		flags = os.O_RDWR
	case pflags&flagWrite != 0:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if pflags&flagAppend != 0 {
		flags |= os.O_APPEND
	}
	if pflags&flagCreate != 0 {
		flags |= os.O_CREATE
	}
	if pflags&flagTruncate != 0 {
		flags |= os.O_TRUNC
	}
	if pflags&flagExcl != 0 {
		flags |= os.O_EXCL
	}
	return flags
}

func (s *Session) handleClose(w io.Writer, id uint32, p *parser) error {
	handleID, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	if h := s.handles.remove(handleID); h != nil {
		if h.file != nil {
			h.file.Close()
		}
		s.lg.Debugf("Closed handle %s", handleID)
	} else {
		s.lg.Warnf("Close on unknown handle %q", handleID)
	}
	return s.writeStatus(w, id, fxOk, "")
}

func (s *Session) handleRead(w io.Writer, id uint32, p *parser) error {
	handleID, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	offset, err := p.readUint64()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	length, err := p.readUint32()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	h, ok := s.handles.get(handleID)
	if !ok || h.isDir {
		s.lg.Warnf("Read on invalid handle %q", handleID)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if length > maxReadLength {
		length = maxReadLength
	}

	file, err := os.Open(h.path)
	if err != nil {
		s.lg.Errorf("Failed to reopen %s: %v", h.path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	defer file.Close()

	if _, err := file.Seek(int64(offset), io.SeekStart); err != nil {
		s.lg.Errorf("Failed to seek to %d: %v", offset, err)
		return s.writeStatus(w, id, fxFailure, "")
	}

	buf := make([]byte, length)
	n, err := file.Read(buf)
	if n > 0 {
		if s.metrics != nil {
			s.metrics.ReadBytes.Add(float64(n))
		}
		return s.writeData(w, id, buf[:n])
	}
	if err == nil || errors.Is(err, io.EOF) {
		return s.writeStatus(w, id, fxEOF, "")
	}
	s.lg.Errorf("Failed to read %s: %v", h.path, err)
	return s.writeStatus(w, id, fxFailure, "")
}

func (s *Session) handleWrite(w io.Writer, id uint32, p *parser) error {
	handleID, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	offset, err := p.readUint64()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	data, err := p.readBytes()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	h, ok := s.handles.get(handleID)
	if !ok || h.isDir || h.file == nil {
		s.lg.Warnf("Write on invalid handle %q", handleID)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if _, err := h.file.Seek(int64(offset), io.SeekStart); err != nil {
		s.lg.Errorf("Failed to seek to %d: %v", offset, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	if _, err := h.file.Write(data); err != nil {
		s.lg.Errorf("Failed to write %s: %v", h.path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	if err := h.file.Sync(); err != nil {
		s.lg.Errorf("Failed to sync %s: %v", h.path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if s.metrics != nil {
		s.metrics.WriteBytes.Add(float64(len(data)))
	}
	return s.writeStatus(w, id, fxOk, "Write successful")
}

func (s *Session) handleOpendir(w io.Writer, id uint32, p *parser) error {
	dirPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Open directory %q", dirPath)

	path, err := jail.Resolve(dirPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", dirPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	info, err := os.Stat(path)
	if err != nil {
		s.lg.Warnf("Failed to stat %s: %v", path, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}
	if !info.IsDir() {
		s.lg.Warnf("Not a directory: %s", path)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	dir, err := os.Open(path)
	if err != nil {
		s.lg.Warnf("Failed to open directory %s: %v", path, err)
		return s.writeStatus(w, id, fxPermissionDenied, "")
	}
	entries, err := dir.Readdirnames(-1)
	dir.Close()
	if err != nil {
		s.lg.Errorf("Failed to list %s: %v", path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}

	handleID := s.handles.add(&openHandle{isDir: true, path: path, entries: entries})
	s.lg.Debugf("Created directory handle %s with %d entries", handleID, len(entries))
	return s.writeHandle(w, id, handleID)
}

func (s *Session) handleReaddir(w io.Writer, id uint32, p *parser) error {
	handleID, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	h, ok := s.handles.get(handleID)
	if !ok || !h.isDir {
		s.lg.Warnf("Readdir on invalid handle %q", handleID)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if h.cursor >= len(h.entries) {
		return s.writeStatus(w, id, fxEOF, "")
	}

	end := h.cursor + readdirBatch
	if end > len(h.entries) {
		end = len(h.entries)
	}
	batch := h.entries[h.cursor:end]
	firstBatch := h.cursor == 0
	h.cursor = end

	var names []nameEntry
	if firstBatch {
		dotAttrs := attrs{flags: attrPermissions, mode: 0755}
		names = append(names,
			nameEntry{name: ".", attrs: dotAttrs},
			nameEntry{name: "..", attrs: dotAttrs},
		)
	}

	for _, entry := range batch {
		info, err := os.Stat(filepath.Join(h.path, entry))
		if err != nil {
			// one unreadable entry must not break the listing
			s.lg.Warnf("Failed to stat entry %q: %v", entry, err)
			names = append(names, nameEntry{name: entry})
			continue
		}
		names = append(names, nameEntry{name: entry, attrs: entryAttrs(info)})
	}

	s.lg.Debugf("Listing %s entries %d-%d", handleID, end-len(batch), end)
	return s.writeName(w, id, names)
}

func (s *Session) handleRemove(w io.Writer, id uint32, p *parser) error {
	filePath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Remove %q", filePath)

	path, err := jail.Resolve(filePath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", filePath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	info, err := os.Stat(path)
	if err != nil {
		s.lg.Warnf("Failed to stat %s: %v", path, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}
	if !info.Mode().IsRegular() {
		s.lg.Warnf("Not a regular file: %s", path)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if err := os.Remove(path); err != nil {
		s.lg.Errorf("Failed to remove %s: %v", path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	return s.writeStatus(w, id, fxOk, "")
}

func (s *Session) handleMkdir(w io.Writer, id uint32, p *parser) error {
	dirPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Create directory %q", dirPath)

	path, err := jail.Resolve(dirPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", dirPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			s.lg.Debugf("Directory already exists: %s", path)
			return s.writeStatus(w, id, fxOk, "Directory already exists")
		}
		s.lg.Warnf("Path exists and is not a directory: %s", path)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		s.lg.Errorf("Failed to create directory %s: %v", path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	s.lg.Infof("Created directory %s", path)
	return s.writeStatus(w, id, fxOk, "")
}

func (s *Session) handleRmdir(w io.Writer, id uint32, p *parser) error {
	dirPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Remove directory %q", dirPath)

	path, err := jail.Resolve(dirPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", dirPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	info, err := os.Stat(path)
	if err != nil {
		s.lg.Warnf("Failed to stat %s: %v", path, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}
	if !info.IsDir() {
		s.lg.Warnf("Not a directory: %s", path)
		return s.writeStatus(w, id, fxFailure, "")
	}

	if err := os.Remove(path); err != nil {
		s.lg.Errorf("Failed to remove directory %s: %v", path, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	return s.writeStatus(w, id, fxOk, "")
}

func (s *Session) handleRealpath(w io.Writer, id uint32, p *parser) error {
	reqPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	// virtual view only, nothing touches the filesystem here
	var norm string
	if reqPath == "" || reqPath == "/" {
		norm = "/"
	} else {
		norm = "/" + strings.TrimLeft(reqPath, "/")
	}

	s.lg.Debugf("Realpath %q -> %q", reqPath, norm)
	return s.writeName(w, id, []nameEntry{{name: norm}})
}

func (s *Session) handleStat(w io.Writer, id uint32, p *parser) error {
	reqPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	path, err := jail.Resolve(reqPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", reqPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	info, err := os.Stat(path)
	if err != nil {
		s.lg.Warnf("Failed to stat %s: %v", path, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	return s.writeAttrs(w, id, statAttrs(info))
}

func (s *Session) handleRename(w io.Writer, id uint32, p *parser) error {
	oldPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}
	newPath, err := p.readString()
	if err != nil {
		return s.writeStatus(w, id, fxBadMessage, "")
	}

	s.lg.Infof("Rename %q to %q", oldPath, newPath)

	oldFull, err := jail.Resolve(oldPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", oldPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}
	newFull, err := jail.Resolve(newPath, s.rootDir)
	if err != nil {
		s.lg.Warnf("Failed to resolve %q: %v", newPath, err)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	if _, err := os.Stat(oldFull); err != nil {
		s.lg.Warnf("Rename source missing: %s", oldFull)
		return s.writeStatus(w, id, fxNoSuchFile, "")
	}

	if err := os.Rename(oldFull, newFull); err != nil {
		s.lg.Errorf("Failed to rename %s to %s: %v", oldFull, newFull, err)
		return s.writeStatus(w, id, fxFailure, "")
	}
	return s.writeStatus(w, id, fxOk, "")
}

func statusText(code uint32) string {
	switch code {
	case fxOk:
		return "Ok"
	case fxEOF:
		return "End of file"
	case fxNoSuchFile:
		return "No such file"
	case fxPermissionDenied:
		return "Permission denied"
	case fxBadMessage:
		return "Bad message"
	case fxConnectionLost:
		return "Connection lost"
	case fxOpUnsupported:
		return "Operation unsupported"
	default:
		return "Failure"
	}
}

func (s *Session) writeStatus(w io.Writer, id uint32, code uint32, message string) error {
	if message == "" {
		message = statusText(code)
	}
	b := appendUint32(nil, id)
	b = appendUint32(b, code)
	b = appendString(b, message)
	b = appendString(b, "en-US")
	return writePacket(w, fxpStatus, b)
}

func (s *Session) writeHandle(w io.Writer, id uint32, handle string) error {
	b := appendUint32(nil, id)
	b = appendString(b, handle)
	return writePacket(w, fxpHandle, b)
}

func (s *Session) writeData(w io.Writer, id uint32, data []byte) error {
	b := appendUint32(nil, id)
	b = appendBytes(b, data)
	return writePacket(w, fxpData, b)
}

func (s *Session) writeAttrs(w io.Writer, id uint32, a attrs) error {
	b := appendUint32(nil, id)
	b = a.encode(b)
	return writePacket(w, fxpAttrs, b)
}

type nameEntry struct {
	name  string
	attrs attrs
}

func (s *Session) writeName(w io.Writer, id uint32, entries []nameEntry) error {
	b := appendUint32(nil, id)
	b = appendUint32(b, uint32(len(entries)))
	for _, e := range entries {
		b = appendString(b, e.name)
		b = appendString(b, longname(e.name, e.attrs))
		b = e.attrs.encode(b)
	}
	return writePacket(w, fxpName, b)
}
