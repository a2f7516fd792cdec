package annotation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/pbaille/annot/internal/domain"
)

// ParseAnnotations reads id,labelBits,subLabelBits lines (no header).
// A single bad line fails the whole read.
func ParseAnnotations(r io.Reader) ([]domain.Annotation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var out []domain.Annotation
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnnotation, err)
		}
		out = append(out, domain.Annotation{
			ID:               fields[0],
			LabelEncoding:    fields[1],
			SubLabelEncoding: fields[2],
		})
	}
	return out, nil
}

// WriteAnnotations writes one newline-terminated line per annotation
func WriteAnnotations(w io.Writer, annotations []domain.Annotation) error {
	cw := csv.NewWriter(w)
	for _, a := range annotations {
		if err := cw.Write([]string{a.ID, a.LabelEncoding, a.SubLabelEncoding}); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
