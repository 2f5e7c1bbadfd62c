// Package media stores uploaded binary blobs on disk and hands back
// retrievable URLs. Files are routed into a subdirectory by sniffed content
// type; names are random so uploads can never collide or be guessed.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize is the upload size ceiling (50 MB).
const MaxFileSize = 50 << 20

var ErrFileTooLarge = fmt.Errorf("media: file exceeds %d bytes", int64(MaxFileSize))

// Store writes uploads under root/files/{images,audio,video}.
type Store struct {
	root string
}

// NewStore creates the upload directories under dataDir and returns a Store.
func NewStore(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, "files")
	for _, sub := range []string{"images", "audio", "video"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return nil, fmt.Errorf("media: create upload dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the directory served under the /files/ URL prefix.
func (s *Store) Root() string {
	return s.root
}

// Save reads a blob, sniffs its content type, and writes it to disk under a
// random name. It returns the public URL path and the bucket the file landed
// in ("images", "audio", or "video"). Reading stops with ErrFileTooLarge
// past MaxFileSize.
func (s *Store) Save(r io.Reader, originalName string) (url, bucket string, err error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", "", fmt.Errorf("media: read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return "", "", ErrFileTooLarge
	}
	if len(data) == 0 {
		return "", "", errors.New("media: empty upload")
	}

	mt := mimetype.Detect(data)
	bucket = bucketFor(mt.String())

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = mt.Extension()
	}
	name := uuid.NewString() + ext

	path := filepath.Join(s.root, bucket, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", "", fmt.Errorf("media: write upload: %w", err)
	}

	return "/files/" + bucket + "/" + name, bucket, nil
}

// bucketFor maps a MIME type to a storage bucket. Anything that is not
// audio or video lands in images, matching how the client renders unknowns.
func bucketFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return "images"
	}
}
