package data

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// TFRecord framing: little-endian uint64 length, masked CRC32-C of the
// length bytes, payload, masked CRC32-C of the payload.

const crcMaskDelta = 0xa282ead8

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, crcTable)
	return ((c >> 15) | (c << 17)) + crcMaskDelta
}

// TFRecordWriter frames records for consumption by the training backend.
type TFRecordWriter struct {
	w io.Writer
}

func NewTFRecordWriter(w io.Writer) *TFRecordWriter {
	return &TFRecordWriter{w: w}
}

func (w *TFRecordWriter) Write(rec []byte) error {
	if w == nil || w.w == nil {
		return errors.New("data: nil tfrecord writer")
	}

	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(rec)))
	binary.LittleEndian.PutUint32(hdr[8:], maskedCRC(hdr[:8]))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("data: write tfrecord header: %w", err)
	}
	if _, err := w.w.Write(rec); err != nil {
		return fmt.Errorf("data: write tfrecord payload: %w", err)
	}

	var foot [4]byte
	binary.LittleEndian.PutUint32(foot[:], maskedCRC(rec))
	if _, err := w.w.Write(foot[:]); err != nil {
		return fmt.Errorf("data: write tfrecord footer: %w", err)
	}
	return nil
}

// TFRecordReader iterates framed records, validating both checksums.
type TFRecordReader struct {
	r *bufio.Reader
}

func NewTFRecordReader(r io.Reader) *TFRecordReader {
	return &TFRecordReader{r: bufio.NewReader(r)}
}

// Next returns the next record payload, or io.EOF after the last record.
func (r *TFRecordReader) Next() ([]byte, error) {
	if r == nil || r.r == nil {
		return nil, errors.New("data: nil tfrecord reader")
	}

	var hdr [12]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("data: read tfrecord header: %w", err)
	}
	if got, want := maskedCRC(hdr[:8]), binary.LittleEndian.Uint32(hdr[8:]); got != want {
		return nil, fmt.Errorf("data: tfrecord length checksum mismatch (got %08x want %08x)", got, want)
	}

	n := binary.LittleEndian.Uint64(hdr[:8])
	rec := make([]byte, n)
	if _, err := io.ReadFull(r.r, rec); err != nil {
		return nil, fmt.Errorf("data: read tfrecord payload: %w", err)
	}

	var foot [4]byte
	if _, err := io.ReadFull(r.r, foot[:]); err != nil {
		return nil, fmt.Errorf("data: read tfrecord footer: %w", err)
	}
	if got, want := maskedCRC(rec), binary.LittleEndian.Uint32(foot[:]); got != want {
		return nil, fmt.Errorf("data: tfrecord payload checksum mismatch (got %08x want %08x)", got, want)
	}
	return rec, nil
}

// CountRecords counts the records in a TFRecord file, for training-step
// computation.
func CountRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("data: open %q: %w", path, err)
	}
	defer f.Close()

	r := NewTFRecordReader(f)
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return 0, fmt.Errorf("data: %s: %w", path, err)
		}
		n++
	}
}

// CountTFRecordExamples sums record counts across files.
func CountTFRecordExamples(paths []string) (int, error) {
	total := 0
	for _, p := range paths {
		n, err := CountRecords(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
