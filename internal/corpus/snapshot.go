package corpus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
)

// Snapshot file layout, little endian:
//
//	header  magic u32 | version u32 | fragments u32 | encodings u32 | created unix i64 | payload size u64
//	payload JSON array of entries
//	footer  CRC32 (IEEE) of the payload
const (
	SnapshotMagic   uint32 = 0x464D5353 // "FMSS"
	SnapshotVersion uint32 = 1
	headerSize             = 32
	footerSize             = 4
)

// SnapshotInfo describes a snapshot file.
type SnapshotInfo struct {
	Fragments int
	Encodings int
	CreatedAt time.Time
}

// WriteSnapshot atomically writes entries to path: it writes a .tmp file
// next to it and renames on success.
func WriteSnapshot(path string, entries []Entry, now time.Time) (SnapshotInfo, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("marshaling snapshot entries: %w", err)
	}
	info := SnapshotInfo{
		Fragments: len(entries),
		Encodings: EncodingCount(entries),
		CreatedAt: now.UTC().Truncate(time.Second),
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], SnapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], SnapshotVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(info.Fragments))
	binary.LittleEndian.PutUint32(header[12:16], uint32(info.Encodings))
	binary.LittleEndian.PutUint64(header[16:24], uint64(info.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(payload)))
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return SnapshotInfo{}, fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	for _, chunk := range [][]byte{header, payload, footer} {
		if _, err := f.Write(chunk); err != nil {
			return SnapshotInfo{}, fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return SnapshotInfo{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return info, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. Damaged files fail
// with ErrCorruptSnapshot; a missing file fails with an os.ErrNotExist error.
func ReadSnapshot(path string) ([]Entry, SnapshotInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(data) < headerSize+footerSize {
		return nil, SnapshotInfo{}, corrupt(path, "file is %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != SnapshotMagic {
		return nil, SnapshotInfo{}, corrupt(path, "bad magic bytes %x", magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != SnapshotVersion {
		return nil, SnapshotInfo{}, corrupt(path, "unsupported version %d", version)
	}
	info := SnapshotInfo{
		Fragments: int(binary.LittleEndian.Uint32(data[8:12])),
		Encodings: int(binary.LittleEndian.Uint32(data[12:16])),
		CreatedAt: time.Unix(int64(binary.LittleEndian.Uint64(data[16:24])), 0).UTC(),
	}
	size := binary.LittleEndian.Uint64(data[24:32])
	if size != uint64(len(data)-headerSize-footerSize) {
		return nil, SnapshotInfo{}, corrupt(path, "payload size %d does not match file", size)
	}

	payload := data[headerSize : headerSize+int(size)]
	want := binary.LittleEndian.Uint32(data[headerSize+int(size):])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, SnapshotInfo{}, corrupt(path, "checksum %08x, expected %08x", got, want)
	}

	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, SnapshotInfo{}, corrupt(path, "decoding entries: %v", err)
	}
	if len(entries) != info.Fragments {
		return nil, SnapshotInfo{}, corrupt(path, "header counts %d fragments, payload has %d", info.Fragments, len(entries))
	}
	return entries, info, nil
}

func corrupt(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", apperrors.ErrCorruptSnapshot, path, fmt.Sprintf(format, args...))
}
