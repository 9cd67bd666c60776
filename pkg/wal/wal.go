package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mutdb/pkg/delta"
	"mutdb/pkg/encoding/custom"
	"mutdb/pkg/types"
)

// FileName is the commit log file inside the store directory.
const FileName = "commit-log.bin"

// frame header: payload length, crc32 of the length bytes, crc32 of payload
// (4 bytes each)
const headerSize = 12

// record message field numbers
const (
	fieldSeq    = 1
	fieldDelete = 2
	fieldAdd    = 3
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// RowCodec converts rows to and from the self-describing record encoding.
type RowCodec[T any] interface {
	EncodeRow(row T) custom.Value
	DecodeRow(v custom.Value) (T, error)
}

type Option func(*options)

type options struct {
	logger      *slog.Logger
	diagnostics bool
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDiagnostics logs size and latency of every append.
func WithDiagnostics(on bool) Option {
	return func(o *options) {
		o.diagnostics = on
	}
}

// logFile is the part of *os.File the log writes through.
type logFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

// CommitLog is an append-only file of Delta records. Each record is written
// as a single framed write followed by fsync, so after Append returns the
// record survives a crash; a record is never visible half-written to Load.
// The file holds exactly the acknowledged records: a failed write or sync is
// cut off again before Append returns.
type CommitLog[T any] struct {
	mu       sync.Mutex
	file     logFile
	filePath string
	size     int64
	broken   error
	codec    RowCodec[T]
	opts     options
}

// Open opens or creates the commit log in dir.
func Open[T any](dir string, codec RowCodec[T], opts ...Option) (*CommitLog[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("empty commit log dir")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create commit log directory: %w", err)
	}

	filePath := filepath.Join(dir, FileName)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open commit log: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat commit log: %w", err)
	}

	l := &CommitLog[T]{
		file:     file,
		filePath: filePath,
		size:     info.Size(),
		codec:    codec,
		opts:     options{logger: slog.Default()},
	}
	for _, o := range opts {
		o(&l.opts)
	}

	return l, nil
}

// Append durably writes d to the end of the log.
func (l *CommitLog[T]) Append(d delta.Delta[T]) error {
	start := time.Now()

	frame, err := l.encodeFrame(d)
	if err != nil {
		return fmt.Errorf("failed to encode commit log record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	if l.broken != nil {
		return fmt.Errorf("%w: %v", ErrBroken, l.broken)
	}

	if _, err := l.file.Write(frame); err != nil {
		return l.rollback(fmt.Errorf("failed to write commit log record: %w", err))
	}
	if err := l.file.Sync(); err != nil {
		return l.rollback(fmt.Errorf("failed to sync commit log: %w", err))
	}
	l.size += int64(len(frame))

	if l.opts.diagnostics {
		l.opts.logger.Info("commit log append",
			"seq", d.Seq,
			"kb", len(frame)/1024,
			"duration", time.Since(start),
		)
	}

	return nil
}

// rollback cuts the file back to the last acknowledged record. When that
// fails too the log refuses appends until the next successful Clear.
func (l *CommitLog[T]) rollback(cause error) error {
	err := l.file.Truncate(l.size)
	if err == nil {
		err = l.file.Sync()
	}
	if err != nil {
		l.broken = err
		l.opts.logger.Error("failed to roll back commit log", "path", l.filePath, "size", l.size, "error", err)
		return errors.Join(cause, fmt.Errorf("%w: %v", ErrBroken, err))
	}
	return cause
}

// Load returns the records of the log, oldest first. Every iteration reopens
// the file, so the sequence can be ranged over more than once. A missing file
// yields nothing. A trailing frame cut short by a crash during Append, or a
// zero-filled tail, is treated as absent. Any checksum mismatch, including
// one on a frame length, is reported as ErrCorruptRecord.
func (l *CommitLog[T]) Load() iter.Seq2[delta.Delta[T], error] {
	return func(yield func(delta.Delta[T], error) bool) {
		file, err := os.Open(l.filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return
			}
			yield(delta.Delta[T]{}, fmt.Errorf("failed to open commit log for reading: %w", err))
			return
		}
		defer func() {
			if cerr := file.Close(); cerr != nil {
				l.opts.logger.Warn("failed to close commit log read file", "error", cerr)
			}
		}()

		info, err := file.Stat()
		if err != nil {
			yield(delta.Delta[T]{}, fmt.Errorf("failed to stat commit log: %w", err))
			return
		}

		reader := bufio.NewReader(file)
		remaining := info.Size()
		for {
			payload, err := readFrame(reader, remaining)
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				l.opts.logger.Warn("ignoring torn commit log tail", "path", l.filePath)
				return
			}
			if errors.Is(err, errZeroHeader) {
				zeros, zerr := zeroFilled(reader)
				if zerr != nil {
					yield(delta.Delta[T]{}, fmt.Errorf("failed to read commit log tail: %w", zerr))
					return
				}
				if zeros {
					l.opts.logger.Warn("ignoring zero-filled commit log tail", "path", l.filePath)
					return
				}
				err = fmt.Errorf("%w: zero frame header followed by data", ErrCorruptRecord)
			}
			if err != nil {
				yield(delta.Delta[T]{}, err)
				return
			}

			remaining -= int64(headerSize + len(payload))

			d, err := l.decodeRecord(payload)
			if err != nil {
				yield(delta.Delta[T]{}, err)
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

// Clear truncates the log to zero length.
func (l *CommitLog[T]) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate commit log: %w", err)
	}
	l.size = 0
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync commit log: %w", err)
	}
	l.broken = nil

	return nil
}

// Size returns the current log length in bytes.
func (l *CommitLog[T]) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *CommitLog[T]) Path() string {
	return l.filePath
}

func (l *CommitLog[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close commit log file: %w", err)
	}
	l.file = nil

	return nil
}

func (l *CommitLog[T]) encodeFrame(d delta.Delta[T]) ([]byte, error) {
	offsets := make([]custom.Value, len(d.Delete))
	for i, off := range d.Delete {
		offsets[i] = custom.Int64(int64(off))
	}
	rows := make([]custom.Value, len(d.Add))
	for i, row := range d.Add {
		rows[i] = l.codec.EncodeRow(row)
	}

	record := custom.Message(
		custom.Field{Number: fieldSeq, Value: custom.Int64(int64(d.Seq))},
		custom.Field{Number: fieldDelete, Value: custom.List(offsets...)},
		custom.Field{Number: fieldAdd, Value: custom.List(rows...)},
	)

	frame, err := custom.Append(make([]byte, headerSize, headerSize+64), record)
	if err != nil {
		return nil, err
	}
	payloadLen := len(frame) - headerSize
	if payloadLen > math.MaxUint32 {
		return nil, fmt.Errorf("record too large: %d", payloadLen)
	}
	binary.LittleEndian.PutUint32(frame[0:], uint32(payloadLen))
	binary.LittleEndian.PutUint32(frame[4:], crc32.Checksum(frame[0:4], crcTable))
	binary.LittleEndian.PutUint32(frame[8:], crc32.Checksum(frame[headerSize:], crcTable))

	return frame, nil
}

var errZeroHeader = errors.New("zero frame header")

// readFrame returns io.EOF at a clean end of file, io.ErrUnexpectedEOF for a
// frame cut short and errZeroHeader for an all-zero header. remaining is the
// number of unread bytes in the file.
func readFrame(r io.Reader, remaining int64) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr == [headerSize]byte{} {
		return nil, errZeroHeader
	}

	if crc32.Checksum(hdr[0:4], crcTable) != binary.LittleEndian.Uint32(hdr[4:]) {
		return nil, fmt.Errorf("%w: bad frame length", ErrCorruptRecord)
	}
	n := int64(binary.LittleEndian.Uint32(hdr[0:]))
	if n == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorruptRecord)
	}
	if n > remaining-headerSize {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if crc32.Checksum(payload, crcTable) != binary.LittleEndian.Uint32(hdr[8:]) {
		return nil, ErrCorruptRecord
	}

	return payload, nil
}

// zeroFilled reports whether r holds nothing but zero bytes.
func zeroFilled(r io.Reader) (bool, error) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b != 0 {
				return false, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}
}

func (l *CommitLog[T]) decodeRecord(payload []byte) (delta.Delta[T], error) {
	var d delta.Delta[T]

	record, n, err := custom.Decode(payload)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if n != len(payload) || record.Type != custom.TypeMessage {
		return d, fmt.Errorf("%w: malformed record", ErrCorruptRecord)
	}

	seq, ok := record.Lookup(fieldSeq)
	if !ok || seq.Type != custom.TypeInt64 {
		return d, fmt.Errorf("%w: missing sequence number", ErrCorruptRecord)
	}
	d.Seq = types.SeqN(seq.Int64)

	if offsets, ok := record.Lookup(fieldDelete); ok {
		d.Delete = make([]types.Offset, 0, len(offsets.List))
		for _, v := range offsets.List {
			if v.Type != custom.TypeInt64 {
				return d, fmt.Errorf("%w: bad delete offset", ErrCorruptRecord)
			}
			d.Delete = append(d.Delete, types.Offset(v.Int64))
		}
	}

	if rows, ok := record.Lookup(fieldAdd); ok {
		d.Add = make([]T, 0, len(rows.List))
		for _, v := range rows.List {
			row, err := l.codec.DecodeRow(v)
			if err != nil {
				return d, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
			}
			d.Add = append(d.Add, row)
		}
	}

	return d, nil
}
