package storage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// File is a byte-addressed table file. Every write is flushed so a clean
// process exit leaves all pages durable.
type File struct {
	path string
	file *os.File
}

// Create creates the table file, making parent directories as needed. The
// file must not already exist.
func Create(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "create data directory for %s", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create table file %s", path)
	}

	return &File{path: path, file: file}, nil
}

// Open opens an existing table file for reading and writing.
func Open(path string) (*File, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open table file %s", path)
	}

	return &File{path: path, file: file}, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Size returns the current file size in bytes.
func (f *File) Size() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.path)
	}
	return info.Size(), nil
}

// ReadAt fills buf from the given byte offset.
func (f *File) ReadAt(pos int64, buf []byte) error {
	if _, err := f.file.ReadAt(buf, pos); err != nil {
		return errors.Wrapf(err, "read %d bytes at %d from %s", len(buf), pos, f.path)
	}
	return nil
}

// WriteAt writes buf at the given byte offset and flushes.
func (f *File) WriteAt(pos int64, buf []byte) error {
	if _, err := f.file.WriteAt(buf, pos); err != nil {
		return errors.Wrapf(err, "write %d bytes at %d to %s", len(buf), pos, f.path)
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", f.path)
	}
	return nil
}

// Close closes the underlying file handle.
func (f *File) Close() error {
	return f.file.Close()
}
