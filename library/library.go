// Package library - Metadata bookkeeping for uploaded images, kept in a JSON side-file.
package library

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvr-ai/go-cellshade/images"
)

// ErrNotFound is returned for an unknown entry id.
var ErrNotFound = errors.New("image not found")

// Entry describes one uploaded image.
type Entry struct {
	ID             int       `json:"id"`
	Filename       string    `json:"filename"`
	OriginalName   string    `json:"original_name"`
	FileSize       int64     `json:"file_size"`
	OriginalWidth  int       `json:"original_width"`
	OriginalHeight int       `json:"original_height"`
	TargetWidth    int       `json:"target_width"`
	TargetHeight   int       `json:"target_height"`
	KeepRatio      bool      `json:"keep_ratio"`
	AspectRatio    float64   `json:"aspect_ratio"`
	UploadTime     time.Time `json:"upload_time"`
	FilePath       string    `json:"file_path"`
}

// NewEntry holds the fields supplied when registering an upload.
type NewEntry struct {
	Filename       string
	OriginalName   string
	FileSize       int64
	OriginalWidth  int
	OriginalHeight int
	// TargetWidth and TargetHeight default to the original size when zero.
	TargetWidth  int
	TargetHeight int
	KeepRatio    bool
}

// Update carries a partial change to an entry. Nil fields are left alone.
type Update struct {
	TargetWidth  *int  `json:"target_width"`
	TargetHeight *int  `json:"target_height"`
	KeepRatio    *bool `json:"keep_ratio"`
}

// Validate implements validation.Validatable.
func (u Update) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.TargetWidth, validation.NilOrNotEmpty, validation.Min(1), validation.Max(images.MaxOutput.Width)),
		validation.Field(&u.TargetHeight, validation.NilOrNotEmpty, validation.Min(1), validation.Max(images.MaxOutput.Height)),
	)
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.TargetWidth == nil && u.TargetHeight == nil && u.KeepRatio == nil
}

// Store persists entries in a JSON file. All methods are safe for concurrent use.
type Store struct {
	path    string
	dirName string
	mu      sync.Mutex
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides the clock used for upload times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithUploadDirName sets the directory name recorded in Entry.FilePath.
func WithUploadDirName(name string) Option {
	return func(s *Store) {
		s.dirName = name
	}
}

// Open returns a store backed by the file at path. The file is created on the
// first write.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		dirName: "uploads",
		logger:  log.With().Str("component", "library").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the metadata file path.
func (s *Store) Path() string {
	return s.path
}

// List returns every entry in insertion order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the entry with the given id.
func (s *Store) Get(id int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.load() {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, errors.Wrapf(ErrNotFound, "id %d", id)
}

// Add registers an upload and returns the stored entry. Ids are one more than the
// largest id in the file, so an id is never reused while its successor exists.
func (s *Store) Add(n NewEntry) (Entry, error) {
	if n.OriginalWidth <= 0 || n.OriginalHeight <= 0 {
		return Entry{}, errors.Errorf("invalid original dimensions %dx%d", n.OriginalWidth, n.OriginalHeight)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	next := 1
	for _, e := range entries {
		if e.ID >= next {
			next = e.ID + 1
		}
	}

	e := Entry{
		ID:             next,
		Filename:       n.Filename,
		OriginalName:   n.OriginalName,
		FileSize:       n.FileSize,
		OriginalWidth:  n.OriginalWidth,
		OriginalHeight: n.OriginalHeight,
		TargetWidth:    n.TargetWidth,
		TargetHeight:   n.TargetHeight,
		KeepRatio:      n.KeepRatio,
		AspectRatio:    float64(n.OriginalWidth) / float64(n.OriginalHeight),
		UploadTime:     s.now(),
		FilePath:       filepath.ToSlash(filepath.Join(s.dirName, n.Filename)),
	}
	if e.TargetWidth == 0 {
		e.TargetWidth = n.OriginalWidth
	}
	if e.TargetHeight == 0 {
		e.TargetHeight = n.OriginalHeight
	}

	if err := s.save(append(entries, e)); err != nil {
		return Entry{}, err
	}
	s.logger.Info().Int("id", e.ID).Str("original_name", e.OriginalName).Msg("added image metadata")
	return e, nil
}

// Update applies a validated partial change to an entry.
func (s *Store) Update(id int, u Update) (Entry, error) {
	if err := u.Validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if u.TargetWidth != nil {
			entries[i].TargetWidth = *u.TargetWidth
		}
		if u.TargetHeight != nil {
			entries[i].TargetHeight = *u.TargetHeight
		}
		if u.KeepRatio != nil {
			entries[i].KeepRatio = *u.KeepRatio
		}
		if err := s.save(entries); err != nil {
			return Entry{}, err
		}
		return entries[i], nil
	}
	return Entry{}, errors.Wrapf(ErrNotFound, "id %d", id)
}

// Remove deletes an entry and returns it.
func (s *Store) Remove(id int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	for i, e := range entries {
		if e.ID != id {
			continue
		}
		rest := append(entries[:i:i], entries[i+1:]...)
		if err := s.save(rest); err != nil {
			return Entry{}, err
		}
		s.logger.Info().Int("id", id).Msg("removed image metadata")
		return e, nil
	}
	return Entry{}, errors.Wrapf(ErrNotFound, "id %d", id)
}

// load reads the file. A missing or unreadable file is an empty library.
func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error().Err(err).Str("path", s.path).Msg("failed to read image metadata")
		}
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to parse image metadata")
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

// save writes the file atomically through a temporary sibling.
func (s *Store) save(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create metadata directory")
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode metadata")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary metadata file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write metadata")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write metadata")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed to replace metadata file")
	}

	s.logger.Debug().Int("count", len(entries)).Msg("saved image metadata")
	return nil
}
