package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

const (
	recordFileSuffix = ".session"
	tempFilePattern  = ".tmp-*"

	listBatchSize = 128
)

// FileStore persists one record per file under an injected root directory.
// Writes land in a uniquely named temporary file in the same directory and
// are renamed into place, so a crash mid-write never corrupts the previously
// committed record. Multiple independent stores over distinct directories can
// coexist in one process.
type FileStore struct {
	dir string
}

// NewFileStore creates the root directory if needed and returns a store
// rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("session directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &FileStore{dir: dir}, nil
}

// Directory returns the filesystem root this store writes under.
func (s *FileStore) Directory() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+recordFileSuffix)
}

func validID(id string) bool {
	if id == "" || len(id) > 255 {
		return false
	}
	if strings.ContainsAny(id, "/\\") || strings.HasPrefix(id, ".") {
		return false
	}
	return true
}

// Put commits rec atomically. The version check reads the currently committed
// file; callers serialize same-id writers through the engine guard, the check
// here is the correctness backstop against racing processes.
func (s *FileStore) Put(ctx context.Context, rec *Record, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || !validID(rec.ID) {
		return errors.New("invalid session record id")
	}

	current, err := s.readVersion(rec.ID)
	switch {
	case err == nil:
		if expectedVersion == NoVersion || current != expectedVersion {
			return fmt.Errorf("%w: have %d, expected %d", ErrVersionConflict, current, expectedVersion)
		}
	case errors.Is(err, ErrNotFound):
		if expectedVersion != NoVersion {
			return fmt.Errorf("%w: record gone, expected %d", ErrVersionConflict, expectedVersion)
		}
	default:
		return err
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, rec.ID+tempFilePattern)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpName, s.path(rec.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Get returns the committed record for id.
func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Decode(data)
}

// Delete removes the committed record file. A second call for the same id
// fails with [ErrNotFound]; idempotent callers treat that as success.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(id) {
		return ErrNotFound
	}

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListIDs walks the directory lazily in batches. Temporary files and foreign
// entries are skipped. The sequence restarts from a fresh directory handle on
// every call; it does not snapshot concurrent mutation.
func (s *FileStore) ListIDs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dir, err := os.Open(s.dir)
		if err != nil {
			yield("", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
			return
		}
		defer dir.Close()

		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			entries, err := dir.ReadDir(listBatchSize)
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() || !strings.HasSuffix(name, recordFileSuffix) {
					continue
				}
				id := strings.TrimSuffix(name, recordFileSuffix)
				if !validID(id) {
					continue
				}
				if !yield(id, nil) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
				return
			}
		}
	}
}

func (s *FileStore) readVersion(id string) (uint64, error) {
	rec, err := s.Get(context.Background(), id)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}
