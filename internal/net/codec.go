package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineLength bounds a single console line, terminator included.
const MaxLineLength = 1024

var ErrLineTooLong = errors.New("console line too long")

// ReadLine reads one console line from r, which must have been created with
// bufio.NewReaderSize(conn, MaxLineLength). The trailing CR/LF is stripped.
func ReadLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", ErrLineTooLong
		}
		if errors.Is(err, io.EOF) && len(raw) > 0 {
			return strings.TrimRight(string(raw), "\r\n"), nil
		}
		return "", fmt.Errorf("read line: %w", err)
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

// WriteLine writes line terminated by CRLF.
func WriteLine(w io.Writer, line string) error {
	if _, err := io.WriteString(w, line+"\r\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}
