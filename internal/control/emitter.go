package control

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vietddude/firehose/internal/core/domain"
)

// RecordWriter writes records as newline-delimited JSON.
type RecordWriter struct {
	enc   *json.Encoder
	count uint64
}

// NewRecordWriter creates a RecordWriter on w.
func NewRecordWriter(w io.Writer) *RecordWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &RecordWriter{enc: enc}
}

// Write emits one record.
func (rw *RecordWriter) Write(r domain.Record) error {
	if err := rw.enc.Encode(r.Value); err != nil {
		return fmt.Errorf("write record %d: %w", r.Seq, err)
	}
	rw.count++
	return nil
}

// Drain writes records until the channel closes.
func (rw *RecordWriter) Drain(records <-chan domain.Record) error {
	for r := range records {
		if err := rw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records written.
func (rw *RecordWriter) Count() uint64 {
	return rw.count
}
