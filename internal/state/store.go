// Package state owns the single persisted board document: timers, command
// definitions, vacation list, message-of-the-day cache and the ledger-poll
// cursor. Every mutation runs as one load-mutate-save critical section.
package state

import (
	"encoding/json"
	"sync"

	"github.com/peterbourgon/diskv/v3"
	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/model"
)

const docKey = "board-state"

// Document is the whole persisted state. Saves are full-document overwrites;
// a corrupted file on disk falls back to Defaults at load time.
type Document struct {
	Timers            map[string]*model.Timer `json:"timers"`
	CustomCommands    map[string]string       `json:"customCommands"`
	StandardOverrides map[string]string       `json:"standardOverrides"`
	Vacation          []string                `json:"vacation"`
	MOTD              string                  `json:"motd"`
	LastMOTDDate      string                  `json:"lastMotdDate"` // YYYY-MM-DD
	LastSourceRow     int                     `json:"lastSourceRow"`
}

// Defaults returns the canonical defaults template. Keys absent in storage
// are filled from here, never removed.
func Defaults() *Document {
	return &Document{
		Timers:            map[string]*model.Timer{},
		CustomCommands:    map[string]string{},
		StandardOverrides: map[string]string{},
		Vacation:          []string{},
		LastSourceRow:     1,
	}
}

// OnVacation reports whether the given user is on the vacation list.
func (d *Document) OnVacation(userID string) bool {
	for _, v := range d.Vacation {
		if v == userID {
			return true
		}
	}
	return false
}

// Store is the sole writer of the board document.
type Store struct {
	d   *diskv.Diskv
	mu  sync.Mutex
	log zerolog.Logger
}

// NewStore opens (or creates) the document store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	d := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024,
	})
	return &Store{d: d, log: log}
}

// Load reads the persisted document merged over the defaults template.
// Missing or corrupted data is not fatal: the defaults win and the event is
// logged.
func (s *Store) Load() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() *Document {
	doc := Defaults()
	if !s.d.Has(docKey) {
		return doc
	}
	raw, err := s.d.Read(docKey)
	if err != nil {
		s.log.Error().Err(err).Msg("state read failed, using defaults")
		return Defaults()
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		s.log.Error().Err(err).Msg("state document corrupted, using defaults")
		return Defaults()
	}
	backfill(doc)
	return doc
}

// backfill restores any known field the stored document lacked.
func backfill(doc *Document) {
	if doc.Timers == nil {
		doc.Timers = map[string]*model.Timer{}
	}
	if doc.CustomCommands == nil {
		doc.CustomCommands = map[string]string{}
	}
	if doc.StandardOverrides == nil {
		doc.StandardOverrides = map[string]string{}
	}
	if doc.Vacation == nil {
		doc.Vacation = []string{}
	}
	if doc.LastSourceRow < 1 {
		doc.LastSourceRow = 1
	}
}

// Save overwrites the whole persisted document.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *Store) save(doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.d.Write(docKey, raw)
}

// Update runs fn inside the load-mutate-save critical section. No other
// mutation can interleave; returning an error from fn abandons the save.
// The committed document is returned so callers can render from a snapshot
// taken after their own change.
func (s *Store) Update(fn func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
