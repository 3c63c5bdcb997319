package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrFileTooLarge is returned by SaveUpload when the source exceeds the
// size limit. The partially written destination is removed.
var ErrFileTooLarge = errors.New("file too large")

// pdfSignature is the mandatory first five bytes of any PDF file. A cheap
// necessary-but-not-sufficient check performed before heavier parsing.
var pdfSignature = []byte("%PDF-")

// SaveUpload streams src to dest enforcing maxSize, returning the number
// of bytes written. Copying stops as soon as the limit is crossed.
func SaveUpload(src io.Reader, dest string, maxSize int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, io.LimitReader(src, maxSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return written, err
	}
	if written > maxSize {
		os.Remove(dest)
		return written, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}
	return written, nil
}

// ValidatePDFSignature checks that the file starts with the %PDF- magic.
func ValidatePDFSignature(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(pdfSignature))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("not a valid PDF (missing %%PDF- header)")
	}
	if !bytes.Equal(head, pdfSignature) {
		return fmt.Errorf("not a valid PDF (missing %%PDF- header)")
	}
	return nil
}
