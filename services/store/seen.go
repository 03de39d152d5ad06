package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"sjsage522/listingwatcher/internal/listing"
	"sjsage522/listingwatcher/logger"
	werrors "sjsage522/listingwatcher/pkg/errors"
)

// seenFile is the persisted form of the seen store
type seenFile struct {
	Seen      []string  `json:"seen"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SeenStore is the set of listing identifiers observed so far. Membership
// and insertion are in-memory; Save persists the whole set.
type SeenStore struct {
	path  string
	ids   map[string]struct{}
	order []string
	now   func() time.Time
}

// New creates an empty store persisted at path
func New(path string) *SeenStore {
	return &SeenStore{
		path: path,
		ids:  make(map[string]struct{}),
		now:  time.Now,
	}
}

// Load reads the store at path. It never fails: a missing, unreadable or
// malformed file yields an empty store. Both the {"seen": [...]} record and
// the legacy bare list are accepted; entries that are not identifiers are
// dropped.
func Load(path string) *SeenStore {
	log := logger.ForStore()
	s := New(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Seen file unreadable, starting fresh")
		}
		return s
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Seen file malformed, starting fresh")
		return s
	}

	for _, e := range entries {
		if id, ok := listing.ToItemID(e); ok {
			s.Add(id)
		}
	}

	log.Debug().Str("path", path).Int("count", s.Len()).Msg("Seen store loaded")
	return s
}

// decodeEntries accepts the record form or the legacy list form. Entries
// may be strings or plain integers.
func decodeEntries(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}

	var list []interface{}
	switch v := data.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		list, _ = v["seen"].([]interface{})
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		}
	}
	return out, nil
}

// Path returns the persistence path
func (s *SeenStore) Path() string {
	return s.path
}

// Has reports whether id was seen
func (s *SeenStore) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id and reports whether it was new
func (s *SeenStore) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Len returns the number of identifiers
func (s *SeenStore) Len() int {
	return len(s.ids)
}

// IDs returns identifiers in insertion order
func (s *SeenStore) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Save writes the full set with the current timestamp. The file is replaced
// by rename so readers never observe a partial write.
func (s *SeenStore) Save() error {
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if listing.IsItemID(id) {
			ids = append(ids, id)
		}
	}

	data, err := json.MarshalIndent(seenFile{Seen: ids, UpdatedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return werrors.NewStorage(s.path, "failed to encode seen store", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return werrors.NewStorage(s.path, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return werrors.NewStorage(s.path, "failed to set file mode", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return werrors.NewStorage(s.path, "failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return werrors.NewStorage(s.path, "failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return werrors.NewStorage(s.path, "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return werrors.NewStorage(s.path, "failed to replace seen file", err)
	}
	return nil
}
