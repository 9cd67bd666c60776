package columnar

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"mutdb/pkg/compression"
)

const (
	snapshotMagic   = "MCOL"
	snapshotVersion = uint16(1)
)

// Save writes every column of the table to w.
//
// Layout (little endian):
//
//	magic "MCOL" | version u16 | rows u64 | columns u32
//	per column: name len u16 | name | kind u8 | codec u8 | block len u64 | block
func (t *Table[T]) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	hdr := make([]byte, 0, 18)
	hdr = append(hdr, snapshotMagic...)
	hdr = binary.LittleEndian.AppendUint16(hdr, snapshotVersion)
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(t.size))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(t.columns)))
	if _, err := bw.Write(hdr); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, c := range t.columns {
		if err := t.saveColumn(bw, c); err != nil {
			return fmt.Errorf("failed to write column %q: %w", c.Name(), err)
		}
	}

	return bw.Flush()
}

func (t *Table[T]) saveColumn(w io.Writer, c Column) error {
	name := c.Name()
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("column name too long: %d", len(name))
	}

	var block compressedBlock
	if _, err := t.opts.codec.Compress(c.marshal(), &block); err != nil {
		return err
	}

	hdr := make([]byte, 0, 2+len(name)+10)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(len(name)))
	hdr = append(hdr, name...)
	hdr = append(hdr, byte(c.Kind()), byte(t.opts.codec))
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(len(block)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

type compressedBlock []byte

func (b *compressedBlock) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

type rawColumn struct {
	name  string
	kind  Kind
	codec compression.Codec
	block []byte
}

// Load replaces the contents of the table with a snapshot produced by Save.
// Column blocks are decoded concurrently, at most parallelism at a time.
// Columns present in T but absent from the snapshot are zero-filled; columns
// absent from T are skipped. The table is left untouched on error.
func (t *Table[T]) Load(r io.Reader, parallelism int) error {
	br := bufio.NewReader(r)

	hdr := make([]byte, 18)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if string(hdr[:4]) != snapshotMagic {
		return fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, hdr[:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, v)
	}
	rows64 := binary.LittleEndian.Uint64(hdr[6:])
	if rows64 > math.MaxInt32 {
		return fmt.Errorf("%w: row count %d", ErrBadSnapshot, rows64)
	}
	rows := int(rows64)
	ncols := int(binary.LittleEndian.Uint32(hdr[14:]))

	raws := make([]rawColumn, 0, ncols)
	for i := 0; i < ncols; i++ {
		raw, err := readColumn(br)
		if err != nil {
			return fmt.Errorf("%w: column %d: %v", ErrBadSnapshot, i, err)
		}
		raws = append(raws, raw)
	}

	fresh := t.schema.newColumns()
	loaded := make([]bool, len(fresh))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, raw := range raws {
		i, ok := t.schema.byName[raw.name]
		if !ok {
			slog.Debug("skipping snapshot column unknown to schema", "column", raw.name)
			continue
		}
		if t.schema.fields[i].kind != raw.kind {
			return fmt.Errorf("%w: column %q is %s in snapshot, %s in schema",
				ErrColumnKind, raw.name, raw.kind, t.schema.fields[i].kind)
		}
		loaded[i] = true

		col := fresh[i]
		g.Go(func() error {
			data, err := raw.codec.Decompress(raw.block)
			if err != nil {
				return fmt.Errorf("%w: column %q: %v", ErrBadSnapshot, raw.name, err)
			}
			return col.unmarshal(data, rows)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, col := range fresh {
		if !loaded[i] {
			col.grow(rows)
		}
		t.columns[i].adopt(col)
	}
	t.size = rows

	return nil
}

func readColumn(r io.Reader) (rawColumn, error) {
	var nameLen [2]byte
	if _, err := io.ReadFull(r, nameLen[:]); err != nil {
		return rawColumn{}, err
	}
	name := make([]byte, binary.LittleEndian.Uint16(nameLen[:]))
	if _, err := io.ReadFull(r, name); err != nil {
		return rawColumn{}, err
	}

	var meta [10]byte
	if _, err := io.ReadFull(r, meta[:]); err != nil {
		return rawColumn{}, err
	}
	blockLen := binary.LittleEndian.Uint64(meta[2:])
	if blockLen > math.MaxInt32 {
		return rawColumn{}, fmt.Errorf("block too large: %d", blockLen)
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return rawColumn{}, err
	}

	return rawColumn{
		name:  string(name),
		kind:  Kind(meta[0]),
		codec: compression.Codec(meta[1]),
		block: block,
	}, nil
}
