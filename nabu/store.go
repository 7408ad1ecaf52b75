package nabu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PakSource materializes a pak for a program id. Implementations load
// from a pak directory, segment a raw image, or fetch and decrypt from
// the cloud archive.
type PakSource interface {
	Load(ctx context.Context, pakID uint32) (*Pak, error)
}

// Store maps (pak id, segment index) to framed segments, lazily loading
// and caching paks from its source. Loaded paks are immutable and live
// until the process exits.
//
// The cache uses an insert-if-absent discipline under a mutex so it
// stays deterministic if sessions ever run concurrently.
type Store struct {
	mu     sync.Mutex
	source PakSource
	paks   map[uint32]*Pak
}

// NewStore creates a store backed by the given source.
func NewStore(source PakSource) *Store {
	return &Store{
		source: source,
		paks:   make(map[uint32]*Pak),
	}
}

// Get returns the pak for an id, loading it on first request.
func (s *Store) Get(ctx context.Context, pakID uint32) (*Pak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pak, ok := s.paks[pakID]; ok {
		return pak, nil
	}
	pak, err := s.source.Load(ctx, pakID)
	if err != nil {
		return nil, err
	}
	s.paks[pakID] = pak
	return pak, nil
}

// Cached reports whether a pak is already materialized.
func (s *Store) Cached(pakID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paks[pakID]
	return ok
}

// Preload materializes a pak ahead of the first client request.
func (s *Store) Preload(ctx context.Context, pakID uint32) error {
	_, err := s.Get(ctx, pakID)
	return err
}

// Segment returns the framed segment for (pak id, index).
func (s *Store) Segment(ctx context.Context, pakID uint32, index byte) ([]byte, error) {
	pak, err := s.Get(ctx, pakID)
	if err != nil {
		return nil, err
	}
	return pak.Segment(index)
}

// DirSource loads pre-segmented pak files from a directory. Pak ids map
// to file names as six upper-case hex digits with a lower-case .pak
// extension, e.g. id 1 -> 000001.pak.
type DirSource struct {
	// Dir is the pak directory
	Dir string
}

// PakFileName returns the on-disk file name for a pak id.
func PakFileName(pakID uint32) string {
	return fmt.Sprintf("%06X.pak", pakID)
}

func (d *DirSource) Load(ctx context.Context, pakID uint32) (*Pak, error) {
	path := filepath.Join(d.Dir, PakFileName(pakID))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, NewPakError(ErrUnknownProgram, "no pak file", pakID)
	}
	if err != nil {
		return nil, WrapError(ErrStorageRead, "reading pak file", int64(pakID), err)
	}
	return ParsePak(pakID, data)
}

// FileSource serves a single raw program image, segmented on the fly,
// for every requested pak id. Used to boot one .nabu file directly.
type FileSource struct {
	// Path is the raw image file
	Path string
}

func (f *FileSource) Load(ctx context.Context, pakID uint32) (*Pak, error) {
	image, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, NewPakError(ErrUnknownProgram, "no image file", pakID)
	}
	if err != nil {
		return nil, WrapError(ErrStorageRead, "reading image file", int64(pakID), err)
	}
	return PakifyImage(pakID, image), nil
}

// CloudPakSource fetches encrypted paks from a CloudSource and decrypts
// them. A blob that decrypts but does not parse as a pak is a decrypt
// failure: wrong key material and corrupt ciphertext look identical
// after CBC.
type CloudPakSource struct {
	Cloud *CloudSource
}

func (c *CloudPakSource) Load(ctx context.Context, pakID uint32) (*Pak, error) {
	blob, err := c.Cloud.Fetch(ctx, pakID)
	if err != nil {
		return nil, err
	}
	data, err := DecryptPak(blob)
	if err != nil {
		return nil, err
	}
	pak, err := ParsePak(pakID, data)
	if err != nil {
		return nil, WrapError(ErrDecrypt, "decrypted blob is not a pak", int64(pakID), err)
	}
	return pak, nil
}
