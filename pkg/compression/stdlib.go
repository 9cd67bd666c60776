package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Codec identifies the compression applied to a snapshot column block.
type Codec uint8

const (
	None Codec = iota
	Gzip
	Zstd
)

// ParseCodec maps a config name to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q", name)
	}
}

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Compress writes src to w using the codec and returns the number of bytes written to w.
func (c Codec) Compress(src []byte, w io.Writer) (int64, error) {
	switch c {
	case None:
		n, err := w.Write(src)
		return int64(n), err
	case Gzip:
		return CompressGzip(bytes.NewReader(src), w)
	case Zstd:
		return CompressZstd(bytes.NewReader(src), w)
	default:
		return 0, fmt.Errorf("unknown codec: %d", uint8(c))
	}
}

// Decompress decodes a whole block produced by Compress.
func (c Codec) Decompress(block []byte) ([]byte, error) {
	if c == None {
		return block, nil
	}

	var out bytes.Buffer
	var err error
	switch c {
	case Gzip:
		_, err = DecompressGzip(bytes.NewReader(block), &out)
	case Zstd:
		_, err = DecompressZstd(bytes.NewReader(block), &out)
	default:
		err = fmt.Errorf("unknown codec: %d", uint8(c))
	}
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// CompressGzip compresses using standard gzip
func CompressGzip(r io.Reader, w io.Writer) (int64, error) {
	counter := &ByteCounter{w: w}
	gz := gzip.NewWriter(counter)
	defer gz.Close()

	_, err := io.Copy(gz, r)
	if err != nil {
		return 0, err
	}

	if err := gz.Close(); err != nil {
		return 0, err
	}

	return counter.Count(), nil
}

// DecompressGzip decompresses gzip data
func DecompressGzip(r io.Reader, w io.Writer) (int64, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	return io.Copy(w, gz)
}

// CompressZstd compresses using zstd
func CompressZstd(r io.Reader, w io.Writer) (int64, error) {
	counter := &ByteCounter{w: w}
	enc, err := zstd.NewWriter(counter)
	if err != nil {
		return 0, err
	}
	defer enc.Close()

	_, err = io.Copy(enc, r)
	if err != nil {
		return 0, err
	}

	if err := enc.Close(); err != nil {
		return 0, err
	}

	return counter.Count(), nil
}

// DecompressZstd decompresses zstd data
func DecompressZstd(r io.Reader, w io.Writer) (int64, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer dec.Close()

	return io.Copy(w, dec)
}
