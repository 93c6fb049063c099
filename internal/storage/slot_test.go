package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal PNG signature plus IHDR chunk header, enough for content sniffing.
var pngHead = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00,
}

func newStore(t *testing.T) *SlotStore {
	t.Helper()
	s := NewSlotStore(filepath.Join(t.TempDir(), "selectedimg"), 1024)
	require.NoError(t, s.Ensure())
	return s
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnsureCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "selectedimg")
	s := NewSlotStore(dir, 0)

	require.NoError(t, s.Ensure())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Second call sees the directory and is a no-op.
	assert.NoError(t, s.Ensure())
	assert.Equal(t, int64(10<<20), s.MaxBytes())
}

func TestEnsureRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := NewSlotStore(path, 0).Ensure()
	assert.ErrorContains(t, err, "not a directory")
}

func TestPutOverwritesSingleSlot(t *testing.T) {
	s := newStore(t)

	first, err := s.Put(Upload{OriginalName: "fish.JPG", ContentType: "image/jpeg", Body: strings.NewReader("first")})
	require.NoError(t, err)
	assert.Equal(t, "selected_image.jpg", first.Filename)
	assert.True(t, filepath.IsAbs(first.Path))

	second, err := s.Put(Upload{OriginalName: "fish.png", ContentType: "image/png", Body: bytes.NewReader(pngHead)})
	require.NoError(t, err)
	assert.Equal(t, "selected_image.png", second.Filename)
	assert.Equal(t, int64(len(pngHead)), second.Size)

	assert.Equal(t, []string{"selected_image.png"}, listDir(t, s.Dir()))

	cur, err := s.Current()
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "selected_image.png", cur.Filename)
	assert.Equal(t, "image/png", cur.ContentType)
}

func TestPutSameExtensionReplacesContent(t *testing.T) {
	s := newStore(t)

	_, err := s.Put(Upload{OriginalName: "a.jpg", ContentType: "image/jpeg", Body: strings.NewReader("a much longer body")})
	require.NoError(t, err)
	_, err = s.Put(Upload{OriginalName: "b.jpg", ContentType: "image/jpeg", Body: strings.NewReader("b")})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "selected_image.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestPutRejectsNonImage(t *testing.T) {
	s := newStore(t)
	_, err := s.Put(Upload{OriginalName: "old.png", ContentType: "image/png", Body: bytes.NewReader(pngHead)})
	require.NoError(t, err)

	_, err = s.Put(Upload{OriginalName: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hello")})
	assert.ErrorIs(t, err, ErrNotImage)

	assert.Equal(t, []string{"selected_image.png"}, listDir(t, s.Dir()))
}

func TestPutSniffsOctetStream(t *testing.T) {
	s := newStore(t)

	img, err := s.Put(Upload{OriginalName: "fish.png", ContentType: "application/octet-stream", Body: bytes.NewReader(pngHead)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	_, err = s.Put(Upload{OriginalName: "fish.png", Body: strings.NewReader("plain text pretending")})
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = s.Put(Upload{OriginalName: "fish.png", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestPutSizeLimits(t *testing.T) {
	s := newStore(t)

	_, err := s.Put(Upload{OriginalName: "big.jpg", ContentType: "image/jpeg", Size: 4096, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrTooLarge)

	// Declared size lies; the body itself is too long.
	_, err = s.Put(Upload{OriginalName: "big.jpg", ContentType: "image/jpeg", Size: 1, Body: strings.NewReader(strings.Repeat("x", 2048))})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, listDir(t, s.Dir()))

	_, err = s.Put(Upload{OriginalName: "none.jpg", ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestClear(t *testing.T) {
	s := newStore(t)

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, name := range []string{"selected_image.jpg", "other.txt", "third.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte("x"), 0o644))
	}

	n, err = s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, listDir(t, s.Dir()))

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestClearMissingDir(t *testing.T) {
	s := NewSlotStore(filepath.Join(t.TempDir(), "gone"), 0)
	_, err := s.Clear()
	assert.Error(t, err)
}

func TestWritable(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Writable())
	assert.Empty(t, listDir(t, s.Dir()))

	missing := NewSlotStore(filepath.Join(t.TempDir(), "gone"), 0)
	assert.Error(t, missing.Writable())

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.ErrorContains(t, NewSlotStore(file, 0).Writable(), "not a directory")
}

func TestWritableReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}
	s := newStore(t)
	require.NoError(t, os.Chmod(s.Dir(), 0o555))
	t.Cleanup(func() { _ = os.Chmod(s.Dir(), 0o755) })

	assert.ErrorContains(t, s.Writable(), "not writable")
}

func TestWritableDuringClearLeavesNothingBehind(t *testing.T) {
	s := newStore(t)
	_, err := s.Put(Upload{OriginalName: "a.png", ContentType: "image/png", Body: bytes.NewReader(pngHead)})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 200; i++ {
			if err := s.Writable(); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, <-done)
	assert.Empty(t, listDir(t, s.Dir()))
}
