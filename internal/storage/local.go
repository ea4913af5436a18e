package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ridehub/apiserver/config"
	"github.com/spf13/afero"
)

// LocalClient stores objects as files on an afero filesystem. The bucket is
// a directory under the filesystem root.
type LocalClient struct {
	fs     afero.Fs
	bucket string
}

// NewLocalClient constructs a disk-backed client rooted at cfg.Root.
func NewLocalClient(cfg config.LocalConfig) (*LocalClient, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("local storage root is required")
	}
	return NewLocalClientFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.Root), cfg.Bucket)
}

// NewLocalClientFs constructs a client on top of an existing filesystem.
func NewLocalClientFs(fs afero.Fs, bucket string) (*LocalClient, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("local storage bucket is required")
	}
	return &LocalClient{fs: fs, bucket: bucket}, nil
}

// EnsureBucket creates the bucket directory.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return l.fs.MkdirAll(l.bucket, 0o755)
}

// Put writes the object, creating parent directories as needed.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	name, err := l.objectPath(key)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}

	f, err := l.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(name)
		return err
	}
	return f.Close()
}

// Get opens the object for reading.
func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := l.objectPath(key)
	if err != nil {
		return nil, err
	}
	f, err := l.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the object.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	name, err := l.objectPath(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

// Bucket returns the bucket directory name.
func (l *LocalClient) Bucket() string {
	return l.bucket
}

func (l *LocalClient) objectPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errors.New("invalid object key")
	}
	return path.Join(l.bucket, clean), nil
}
