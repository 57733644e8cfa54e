// Package document holds versioned in-memory text buffers for open
// editor documents, addressed the way LSP addresses them: UTF-16 code
// units per (line, character).
package document

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/fsharp-ls/internal/lsperrors"
)

// Position is a zero-based (line, character) pair, character counted in
// UTF-16 code units, matching the LSP wire format.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) span of Positions.
type Range struct {
	Start Position
	End   Position
}

// Edit is one LSP incremental change. A nil Range means "replace the
// whole document" (LSP's full-content-change form); otherwise NewText
// replaces the text within Range.
type Edit struct {
	Range   *Range
	NewText string
}

// Document is one open editor buffer.
type Document struct {
	mu      sync.RWMutex
	path    string
	text    string
	version int
	open    bool

	unitsDirty bool
	units      []uint16 // lazily rebuilt UTF-16 view of text
}

func newDocument(path, text string, version int) *Document {
	return &Document{path: path, text: text, version: version, open: true}
}

// Text returns a snapshot of the current buffer contents.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Version returns the current buffer version.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// ContentHash is a fast, non-cryptographic fingerprint of the current
// text, for callers that want a cheap change check before an expensive
// parse/check call.
func (d *Document) ContentHash() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return xxhash.Sum64String(d.text)
}

// utf16Units returns the lazily-rebuilt UTF-16 encoding of the text.
// Callers must not hold d.mu: it takes the read lock itself and takes
// the write lock only when the cache needs rebuilding.
func (d *Document) utf16Units() []uint16 {
	d.mu.RLock()
	if !d.unitsDirty && d.units != nil {
		units := d.units
		d.mu.RUnlock()
		return units
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unitsDirty || d.units == nil {
		d.units = utf16Encode(d.text)
		d.unitsDirty = false
	}
	return d.units
}

func utf16Encode(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}

func utf16Decode(units []uint16) string {
	var b strings.Builder
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF {
			r := (rune(u)-0xD800)<<10 + (rune(units[i+1]) - 0xDC00) + 0x10000
			b.WriteRune(r)
			i++
			continue
		}
		b.WriteRune(rune(u))
	}
	return b.String()
}

// offsetOf converts a Position into a UTF-16 unit offset into the
// document, clamped to the buffer bounds.
func offsetOf(units []uint16, lineStarts []int, pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(lineStarts) {
		return len(units)
	}
	start := lineStarts[pos.Line]
	end := len(units)
	if pos.Line+1 < len(lineStarts) {
		end = lineStarts[pos.Line+1]
	}
	off := start + pos.Character
	if off < start {
		off = start
	}
	if off > end {
		off = end
	}
	return off
}

func lineStartsOf(units []uint16) []int {
	starts := []int{0}
	for i, u := range units {
		if u == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// applyEdit applies a single incremental edit to the buffer. Caller
// must hold d.mu for writing.
func (d *Document) applyEdit(e Edit) {
	if e.Range == nil {
		d.text = e.NewText
		d.unitsDirty = true
		return
	}
	units := d.utf16UnitsLocked()
	lineStarts := lineStartsOf(units)
	startOff := offsetOf(units, lineStarts, e.Range.Start)
	endOff := offsetOf(units, lineStarts, e.Range.End)
	if endOff < startOff {
		startOff, endOff = endOff, startOff
	}
	newUnits := make([]uint16, 0, len(units)-(endOff-startOff)+len(e.NewText))
	newUnits = append(newUnits, units[:startOff]...)
	newUnits = append(newUnits, utf16Encode(e.NewText)...)
	newUnits = append(newUnits, units[endOff:]...)
	d.text = utf16Decode(newUnits)
	d.units = newUnits
	d.unitsDirty = false
}

// utf16UnitsLocked rebuilds/returns units assuming the caller already
// holds the write lock.
func (d *Document) utf16UnitsLocked() []uint16 {
	if d.unitsDirty || d.units == nil {
		d.units = utf16Encode(d.text)
		d.unitsDirty = false
	}
	return d.units
}

// Store is the active-object guarding all Document mutations. Writes to
// a single URI are serialized; reads take a consistent snapshot.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open creates or replaces the buffer for path with the given initial
// text and version.
func (s *Store) Open(path, text string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = newDocument(path, text, version)
}

// Change applies edits in order and advances the version. Returns
// lsperrors.UnknownDocumentError if path is not open.
func (s *Store) Change(path string, version int, edits []Edit) error {
	s.mu.RLock()
	doc, ok := s.docs[path]
	s.mu.RUnlock()
	if !ok {
		return lsperrors.NewUnknownDocumentError("Change", path)
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	for _, e := range edits {
		doc.applyEdit(e)
	}
	doc.version = version
	return nil
}

// Close drops the buffer for path. Closing an already-closed or
// never-opened path is a no-op.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// GetText returns the current text for an open document, or false if
// it is not open.
func (s *Store) GetText(path string) (string, bool) {
	s.mu.RLock()
	doc, ok := s.docs[path]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	return doc.Text(), true
}

// GetVersion returns the current version for an open document, or
// false if it is not open.
func (s *Store) GetVersion(path string) (int, bool) {
	s.mu.RLock()
	doc, ok := s.docs[path]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return doc.Version(), true
}

// Get returns the Document handle for path, or false if not open.
// The returned handle remains valid after Close only for readers that
// already captured it; new lookups after Close will miss.
func (s *Store) Get(path string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	return doc, ok
}

// OpenFiles returns the paths of all currently open documents.
func (s *Store) OpenFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	return paths
}

// LineOf returns the line containing index (a UTF-16 unit offset) with
// its trailing newline stripped. Past EOF it returns "".
func LineOf(text string, index int) string {
	units := utf16Encode(text)
	if index < 0 {
		index = 0
	}
	if index > len(units) {
		return ""
	}
	start := index
	for start > 0 && units[start-1] != '\n' {
		start--
	}
	end := index
	for end < len(units) && units[end] != '\n' {
		end++
	}
	line := utf16Decode(units[start:end])
	return strings.TrimSuffix(line, "\r")
}
