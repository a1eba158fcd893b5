package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
)

var snapshotTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corpus.fmss")
	entries := []Entry{
		entry("X.1", []int{0, 1, 2, 1, 5}),
		entry("X.2", []int{0, 1, 5}, []int{0, 1, 1, 5}),
	}

	written, err := WriteSnapshot(path, entries, snapshotTime)
	require.NoError(t, err)
	assert.Equal(t, SnapshotInfo{Fragments: 2, Encodings: 3, CreatedAt: snapshotTime}, written)

	got, info, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.Equal(t, written, info)

	_, err = os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSnapshotDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.fmss")
	_, err := WriteSnapshot(path, []Entry{entry("X.1", []int{0, 1, 5})}, snapshotTime)
	require.NoError(t, err)
	valid, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"flipped payload byte", func(b []byte) []byte { b[headerSize+2] ^= 0xFF; return b }},
		{"bad magic", func(b []byte) []byte { b[0] = 'x'; return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-3] }},
		{"too short", func(b []byte) []byte { return b[:10] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			damaged := filepath.Join(dir, tt.name+".fmss")
			data := tt.mutate(append([]byte(nil), valid...))
			require.NoError(t, os.WriteFile(damaged, data, 0644))

			_, _, err := ReadSnapshot(damaged)
			assert.ErrorIs(t, err, apperrors.ErrCorruptSnapshot)
		})
	}
}

func TestSnapshotMissing(t *testing.T) {
	_, _, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.fmss"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, apperrors.ErrCorruptSnapshot)
}
