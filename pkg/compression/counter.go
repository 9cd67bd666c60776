package compression

import "io"

// ByteCounter wraps an io.Writer and counts bytes written
type ByteCounter struct {
	w     io.Writer
	count int64
}

func NewByteCounter(w io.Writer) *ByteCounter {
	return &ByteCounter{w: w}
}

func (bc *ByteCounter) Write(p []byte) (int, error) {
	n, err := bc.w.Write(p)
	bc.count += int64(n)
	return n, err
}

func (bc *ByteCounter) Count() int64 {
	return bc.count
}
