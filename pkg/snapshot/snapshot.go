package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mutdb/pkg/compression"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/types"
)

// FileName is the base table file inside the store directory.
const FileName = "data.bin"

const (
	magic      = "MSNP"
	version    = uint16(1)
	headerSize = len(magic) + 2 + 8
	tempSuffix = ".tmp"
)

var ErrBadHeader = fmt.Errorf("snapshot header: %w", dberrors.ErrCorrupt)

// SaveFunc streams the table body to w.
type SaveFunc func(w io.Writer) error

// LoadFunc reads the table body from r.
type LoadFunc func(r io.Reader) error

// Path returns the snapshot location for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write replaces the snapshot in dir with one stamped seq. The body goes to a
// uniquely named temporary file that is synced and renamed over the old
// snapshot, so a crash leaves either the old or the new snapshot in place.
// It returns the number of bytes written.
func Write(dir string, seq types.SeqN, save SaveFunc) (int64, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := filepath.Join(dir, FileName+"."+uuid.NewString()+tempSuffix)
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot temp file: %w", err)
	}

	written, err := writeBody(file, seq, save)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp, Path(dir)); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to install snapshot: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return 0, err
	}

	return written, nil
}

func writeBody(file *os.File, seq types.SeqN, save SaveFunc) (int64, error) {
	counter := compression.NewByteCounter(file)
	bw := bufio.NewWriter(counter)

	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, magic...)
	hdr = binary.LittleEndian.AppendUint16(hdr, version)
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(seq))
	if _, err := bw.Write(hdr); err != nil {
		return 0, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if err := save(bw); err != nil {
		return 0, fmt.Errorf("failed to write snapshot body: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync snapshot: %w", err)
	}

	return counter.Count(), nil
}

// Read loads the snapshot in dir through load and returns the sequence number
// it was stamped with. found is false when no snapshot exists yet.
func Read(dir string, load LoadFunc) (seq types.SeqN, found bool, err error) {
	file, err := os.Open(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)

	var hdr [headerSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(hdr[:len(magic)]) != magic {
		return 0, false, fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	if v := binary.LittleEndian.Uint16(hdr[len(magic):]); v != version {
		return 0, false, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	seq = types.SeqN(binary.LittleEndian.Uint64(hdr[len(magic)+2:]))

	if err := load(br); err != nil {
		return 0, false, fmt.Errorf("failed to load snapshot body: %w", err)
	}

	return seq, true, nil
}

// CleanupTemp removes temporary files left behind by an interrupted Write.
func CleanupTemp(dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to list store directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FileName+".") || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove stale snapshot %s: %w", name, err)
		}
		logger.Warn("removed stale snapshot temp file", "file", name)
	}

	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open snapshot directory: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot directory: %w", err)
	}
	return nil
}
