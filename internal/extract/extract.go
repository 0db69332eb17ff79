// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"convrag/internal/domain"
)

// Supported lists the accepted file extensions.
var Supported = []string{".txt", ".pdf"}

// Text extracts the text of the document named name, dispatching on its
// extension.
func Text(name string, r io.ReaderAt, size int64) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt":
		return plainText(r, size)
	case ".pdf":
		return pdfText(r, size)
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedFormat, ext, strings.Join(Supported, ", "))
	}
}

// File extracts the text of a file on disk.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	return Text(path, f, st.Size())
}

func plainText(r io.ReaderAt, size int64) (string, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", domain.ErrUnsupportedFormat)
	}
	return string(data), nil
}

func pdfText(r io.ReaderAt, size int64) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrUnsupportedFormat, p)
		}
	}()
	rdr, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", domain.ErrUnsupportedFormat, err)
	}
	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
