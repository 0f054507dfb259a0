package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
)

// DiskStore keeps files in a local directory served under URLPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix, now: time.Now}, nil
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string { return s.dir }

// Save writes r to a new file. A partially written file is removed.
func (s *DiskStore) Save(_ context.Context, original string, r io.Reader) (Object, error) {
	name, err := Filename(original, s.now())
	if err != nil {
		return Object{}, err
	}
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, errors.Wrap(err, "create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Object{}, errors.Wrap(err, "write file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Object{}, errors.Wrap(err, "close file")
	}
	return Object{Filename: name, URL: s.urlPrefix + "/" + name}, nil
}
