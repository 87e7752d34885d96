// Package commentcodec reads and writes comment records as JSON lines, one
// record per line, so each line parses on its own.
package commentcodec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Encode writes records to w, one JSON object per line.
func Encode(w io.Writer, records []domain.CommentRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// Marshal returns the JSON lines form of records.
func Marshal(records []domain.CommentRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads JSON lines from r. Blank lines are ignored.
func Decode(r io.Reader) ([]domain.CommentRecord, error) {
	var records []domain.CommentRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec domain.CommentRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}
