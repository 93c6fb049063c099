// Package storage keeps the one image the service currently holds.
//
// The storage directory is a single slot: every write lands on
// selected_image<ext> and replaces whatever was there, and Clear empties the
// whole directory. Writes are not serialised across callers, so concurrent
// uploads resolve as last-write-wins.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"
)

// BaseName is the fixed stem of the stored image.
const BaseName = "selected_image"

var (
	ErrNoFile    = errors.New("no image file provided")
	ErrNotImage  = errors.New("only image files are allowed")
	ErrTooLarge  = errors.New("file too large")
	ErrEmptyFile = errors.New("file is empty")
)

// StoredImage describes the current slot content.
type StoredImage struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Upload is one incoming file as seen by the store.
type Upload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

type SlotStore struct {
	dir      string
	maxBytes int64
}

func NewSlotStore(dir string, maxBytes int64) *SlotStore {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &SlotStore{dir: dir, maxBytes: maxBytes}
}

func (s *SlotStore) Dir() string {
	return s.dir
}

func (s *SlotStore) MaxBytes() int64 {
	return s.maxBytes
}

// Ensure creates the storage directory, including parents, when it does not
// exist yet. A concurrent creator winning the race is not an error.
func (s *SlotStore) Ensure() error {
	info, err := os.Stat(s.dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("storage path %s is not a directory", s.dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat storage dir failed: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create storage dir failed: %w", err)
	}
	return nil
}

// Put validates the upload and overwrites the slot with it. A previous slot
// file with a different extension is removed so the directory never holds two
// slot files.
func (s *SlotStore) Put(up Upload) (*StoredImage, error) {
	if up.Body == nil {
		return nil, ErrNoFile
	}
	if up.Size > s.maxBytes {
		return nil, ErrTooLarge
	}

	br := bufio.NewReaderSize(up.Body, 3072)
	contentType, err := resolveContentType(up.ContentType, br)
	if err != nil {
		return nil, err
	}

	filename := BaseName + strings.ToLower(filepath.Ext(up.OriginalName))
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open slot file failed: %w", err)
	}
	// One extra byte lets us notice bodies that lie about their size.
	n, err := io.Copy(f, io.LimitReader(br, s.maxBytes+1))
	closeErr := f.Close()
	if err != nil {
		return nil, fmt.Errorf("write slot file failed: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close slot file failed: %w", closeErr)
	}
	if n > s.maxBytes {
		_ = os.Remove(path)
		return nil, ErrTooLarge
	}

	if err := s.removeStale(filename); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return &StoredImage{
		Filename:    filename,
		Path:        absPath,
		Size:        n,
		ContentType: contentType,
	}, nil
}

// Current returns the slot content, or nil when the slot is empty. A slot
// file removed while it is being inspected counts as empty.
func (s *SlotStore) Current() (*StoredImage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read storage dir failed: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isSlotName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat slot file failed: %w", err)
		}
		path := filepath.Join(s.dir, e.Name())
		mt, err := mimetype.DetectFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("detect slot content type failed: %w", err)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		return &StoredImage{
			Filename:    e.Name(),
			Path:        absPath,
			Size:        info.Size(),
			ContentType: mt.String(),
		}, nil
	}
	return nil, nil
}

// Clear deletes every entry in the storage directory, including files this
// store did not write. The first failure aborts; earlier deletions stay done.
func (s *SlotStore) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read storage dir failed: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return 0, fmt.Errorf("delete %s failed: %w", e.Name(), err)
		}
	}
	return len(entries), nil
}

// Writable reports whether the directory exists and the process may create
// files in it. It checks permissions only and never touches the directory
// contents.
func (s *SlotStore) Writable() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat storage dir failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.dir)
	}
	if err := unix.Access(s.dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("storage dir %s is not writable: %w", s.dir, err)
	}
	return nil
}

func (s *SlotStore) removeStale(keep string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read storage dir failed: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep || !isSlotName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale slot file failed: %w", err)
		}
	}
	return nil
}

func isSlotName(name string) bool {
	return strings.TrimSuffix(name, filepath.Ext(name)) == BaseName
}

// resolveContentType trusts the declared type unless it is missing or the
// generic octet-stream, in which case the leading bytes are sniffed.
func resolveContentType(declared string, br *bufio.Reader) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		if !strings.HasPrefix(declared, "image/") {
			return "", ErrNotImage
		}
		return declared, nil
	}

	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read upload head failed: %w", err)
	}
	if len(head) == 0 {
		return "", ErrEmptyFile
	}
	mt := mimetype.Detect(head)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}
	return mt.String(), nil
}
