// Package notes keeps each user's ordered notebook in memory.
//
// Notes are addressed by their current position in the owner's notebook.
// A position is only valid until the next delete in that notebook: deleting
// index i shifts every later note down by one. Each note also carries a
// stable id assigned at creation, and EditByID/DeleteByID address notes by
// that id for callers that cannot tolerate the shift.
package notes

import (
	"sync"

	"github.com/google/uuid"

	"github.com/starford/jotter/internal/models"
)

// DefaultTitle replaces an empty title.
const DefaultTitle = "Untitled"

type notebook struct {
	mu    sync.Mutex
	notes []models.Note
}

// Store holds one notebook per user. Notebooks of different users are
// locked independently.
type Store struct {
	mu       sync.RWMutex
	books    map[models.UserID]*notebook
	sanitize Sanitizer
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithSanitizer replaces the default HTMLEscape sanitizer.
func WithSanitizer(fn Sanitizer) Option {
	return func(s *Store) {
		if fn != nil {
			s.sanitize = fn
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		books:    make(map[models.UserID]*notebook),
		sanitize: HTMLEscape,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates an empty notebook for userID if it has none.
func (s *Store) Provision(userID models.UserID) {
	s.book(userID, true)
}

// List returns a snapshot of the user's notes in insertion order.
func (s *Store) List(userID models.UserID) []models.IndexedNote {
	b := s.book(userID, false)
	if b == nil {
		return []models.IndexedNote{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.IndexedNote, len(b.notes))
	for i, n := range b.notes {
		out[i] = models.IndexedNote{Index: i, Note: n}
	}
	return out
}

func (s *Store) count(userID models.UserID) int {
	b := s.book(userID, false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notes)
}

// Add appends a note and returns its index. When both fields are empty
// after sanitizing nothing is stored and ok is false.
func (s *Store) Add(userID models.UserID, title, content string) (models.IndexedNote, bool) {
	title, content = s.sanitize(title), s.sanitize(content)
	if title == "" && content == "" {
		return models.IndexedNote{}, false
	}
	if title == "" {
		title = DefaultTitle
	}
	n := models.Note{ID: s.newID(), Title: title, Content: content}

	b := s.book(userID, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append(b.notes, n)
	return models.IndexedNote{Index: len(b.notes) - 1, Note: n}, true
}

// Get returns the note at index, or ok=false when index is out of range.
func (s *Store) Get(userID models.UserID, index int) (models.Note, bool) {
	b := s.book(userID, false)
	if b == nil {
		return models.Note{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.notes) {
		return models.Note{}, false
	}
	return b.notes[index], true
}

// Edit replaces the note at index in place, keeping its id. It reports
// whether a note was replaced; out-of-range indexes are ignored.
func (s *Store) Edit(userID models.UserID, index int, title, content string) bool {
	b := s.book(userID, false)
	if b == nil {
		return false
	}
	title, content = s.normalize(title, content)

	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.notes) {
		return false
	}
	b.notes[index].Title = title
	b.notes[index].Content = content
	return true
}

// Delete removes the note at index. Later notes shift down by one.
func (s *Store) Delete(userID models.UserID, index int) bool {
	b := s.book(userID, false)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.notes) {
		return false
	}
	b.notes = append(b.notes[:index], b.notes[index+1:]...)
	return true
}

// EditByID replaces the note with the given id. Unknown ids are ignored.
func (s *Store) EditByID(userID models.UserID, id, title, content string) bool {
	b := s.book(userID, false)
	if b == nil {
		return false
	}
	title, content = s.normalize(title, content)

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return false
	}
	b.notes[i].Title = title
	b.notes[i].Content = content
	return true
}

// DeleteByID removes the note with the given id. Unknown ids are ignored.
func (s *Store) DeleteByID(userID models.UserID, id string) bool {
	b := s.book(userID, false)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return false
	}
	b.notes = append(b.notes[:i], b.notes[i+1:]...)
	return true
}

func (s *Store) normalize(title, content string) (string, string) {
	title, content = s.sanitize(title), s.sanitize(content)
	if title == "" {
		title = DefaultTitle
	}
	return title, content
}

func (s *Store) book(userID models.UserID, create bool) *notebook {
	s.mu.RLock()
	b, ok := s.books[userID]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.books[userID]; ok {
		return b
	}
	b = &notebook{}
	s.books[userID] = b
	return b
}

func (b *notebook) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, n := range b.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
