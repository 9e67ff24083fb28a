package implementation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

const sniffLen = 3072

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// FilePhotoStore writes device photos into a directory served under
// urlPrefix.
type FilePhotoStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

func NewFilePhotoStore(dir, urlPrefix string, maxBytes int64) (*FilePhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FilePhotoStore{dir: dir, urlPrefix: urlPrefix, maxBytes: maxBytes}, nil
}

// Dir is the directory photos are written to.
func (s *FilePhotoStore) Dir() string { return s.dir }

// Save sniffs the content type, stores the photo as name plus the
// extension of the detected type and returns its URL.
func (s *FilePhotoStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !mimetype.EqualsAny(mtype.String(), allowedPhotoTypes...) {
		return "", fmt.Errorf("%s: %w", mtype.String(), interfaces.ErrUnsupportedMedia)
	}

	filename := filepath.Base(name) + mtype.Extension()
	path := filepath.Join(s.dir, filename)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}
	written, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("failed to write photo: %w", copyErr)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("failed to write photo: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		os.Remove(path)
		return "", interfaces.ErrTooLarge
	}

	return s.urlPrefix + "/" + filename, nil
}
