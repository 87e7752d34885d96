package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jcfangc/yahoo-crawler/internal/commentcodec"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

const ext = ".jsonl"

// Store keeps one comment file per link hash in a directory.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create comment dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the comment file path for hash.
func (s *Store) Path(hash string) string {
	return filepath.Join(s.dir, hash+ext)
}

// Put replaces the comment file for hash. The file is written beside its
// destination and renamed, so readers never observe a partial file.
func (s *Store) Put(ctx context.Context, hash string, records []domain.CommentRecord) error {
	if err := validHash(hash); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, hash+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := commentcodec.Encode(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(hash))
}

// Get reads the records stored for hash.
func (s *Store) Get(ctx context.Context, hash string) ([]domain.CommentRecord, error) {
	if err := validHash(hash); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrCommentsNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return commentcodec.Decode(f)
}

// Exists reports whether a comment file exists for hash.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	if err := validHash(hash); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Keys lists hashes with a comment file, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Strings(keys)
	return keys, nil
}

func validHash(hash string) error {
	if hash == "" || strings.ContainsAny(hash, `/\.`) {
		return fmt.Errorf("invalid hash key %q", hash)
	}
	return nil
}
