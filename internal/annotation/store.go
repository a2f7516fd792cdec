package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/annot/internal/domain"
	"github.com/pbaille/annot/internal/taxonomy"
)

// DefaultID is the id of the sentinel record holding every key
const DefaultID = "default"

var (
	ErrMalformedAnnotation = errors.New("malformed annotation")
	ErrReservedID          = errors.New("reserved record id")
)

// Record is the annotation state of one data file
type Record struct {
	ID        string
	Labels    *KeySet
	SubLabels *KeySet
}

func newRecord(id string) *Record {
	return &Record{ID: id, Labels: newKeySet(), SubLabels: newKeySet()}
}

func (r *Record) set(level domain.Level) *KeySet {
	if level == domain.TopLevel {
		return r.Labels
	}
	return r.SubLabels
}

// Store holds the per-record label state of one session.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	tax     *taxonomy.Taxonomy
	records []*Record
	byID    map[string]*Record
}

// New creates a Store holding only the sentinel record
func New(tax *taxonomy.Taxonomy) *Store {
	s := &Store{tax: tax}
	s.Reset()
	return s
}

// Taxonomy returns the taxonomy the store encodes against
func (s *Store) Taxonomy() *taxonomy.Taxonomy {
	return s.tax
}

// Reset drops every record and recreates the sentinel
func (s *Store) Reset() {
	sentinel := newRecord(DefaultID)
	for _, opt := range s.tax.Options() {
		sentinel.Labels.Add(opt.Key)
		for _, sub := range opt.SubLabels {
			sentinel.SubLabels.Add(sub.Key)
		}
	}
	s.records = []*Record{sentinel}
	s.byID = map[string]*Record{DefaultID: sentinel}
}

func (s *Store) sentinel() *Record {
	return s.records[0]
}

// Classify tells whether key is a label or a sub-label.
// Anything that is not a known label is treated as a sub-label.
func (s *Store) Classify(key string) domain.Level {
	if s.sentinel().Labels.Has(key) {
		return domain.TopLevel
	}
	return domain.Sub
}

func (s *Store) getOrCreate(id string) *Record {
	if r, ok := s.byID[id]; ok {
		return r
	}
	r := newRecord(id)
	s.records = append(s.records, r)
	s.byID[id] = r
	return r
}

// AddLabel activates key on record id, creating the record if needed.
// Activating a sub-label also activates its parent label.
func (s *Store) AddLabel(id, key string) error {
	if id == DefaultID {
		return fmt.Errorf("add label: %w: %q", ErrReservedID, id)
	}
	if s.Classify(key) == domain.TopLevel {
		s.getOrCreate(id).Labels.Add(key)
		return nil
	}

	parent, _, err := s.tax.ParentOf(key)
	if err != nil {
		return fmt.Errorf("add label: %w", err)
	}
	r := s.getOrCreate(id)
	r.Labels.Add(parent)
	r.SubLabels.Add(key)
	return nil
}

// RemoveLabel deactivates key on record id. Removing a label leaves its
// sub-labels alone; removing the last active sub-label of a label also
// removes the label.
func (s *Store) RemoveLabel(id, key string) error {
	if id == DefaultID {
		return fmt.Errorf("remove label: %w: %q", ErrReservedID, id)
	}
	r, ok := s.byID[id]
	if !ok {
		return nil
	}
	if s.Classify(key) == domain.TopLevel {
		r.Labels.Remove(key)
		return nil
	}

	parent, siblings, err := s.tax.ParentOf(key)
	if err != nil {
		return fmt.Errorf("remove label: %w", err)
	}
	if !r.SubLabels.HasAny(siblings) {
		// two levels only, so this recursion stops at the label
		if err := s.RemoveLabel(id, parent); err != nil {
			return err
		}
	}
	r.SubLabels.Remove(key)
	return nil
}

// Toggle removes key from record id if active, otherwise adds it.
// It reports whether key is active afterwards.
func (s *Store) Toggle(id, key string) (bool, error) {
	if s.IsActive(id, key) {
		return false, s.RemoveLabel(id, key)
	}
	return true, s.AddLabel(id, key)
}

// IsActive reports whether key is active on record id
func (s *Store) IsActive(id, key string) bool {
	r, ok := s.byID[id]
	if !ok || id == DefaultID {
		return false
	}
	return r.set(s.Classify(key)).Has(key)
}

// Width is the length of encodings of the given level
func (s *Store) Width(level domain.Level) int {
	return s.sentinel().set(level).Len()
}

// Encode renders the keys of the given level active on record id as a
// string of '0' and '1'. An unknown id encodes as all zeros.
func (s *Store) Encode(id string, level domain.Level) (string, error) {
	bits := []byte(strings.Repeat("0", s.Width(level)))

	r, ok := s.byID[id]
	if !ok {
		return string(bits), nil
	}
	for _, key := range r.set(level).keys {
		pos, err := s.tax.PositionOf(key)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", id, err)
		}
		bits[pos] = '1'
	}
	return string(bits), nil
}

// EncodeFor encodes the level key belongs to
func (s *Store) EncodeFor(id, key string) (string, error) {
	return s.Encode(id, s.Classify(key))
}

// Decode returns the keys of the given level whose bit is set, by ascending offset.
// A bitstring shorter than the level width is read as if padded with zeros.
func (s *Store) Decode(level domain.Level, bits string) ([]string, error) {
	if len(bits) > s.Width(level) {
		return nil, fmt.Errorf("%w: %s encoding %q longer than %d", ErrMalformedAnnotation, level, bits, s.Width(level))
	}

	var keys []string
	for i, c := range bits {
		switch c {
		case '0':
		case '1':
			key, ok := s.tax.KeyAt(level, i)
			if !ok {
				return nil, fmt.Errorf("%w: no %s at offset %d", taxonomy.ErrUnknownKey, level, i)
			}
			keys = append(keys, key)
		default:
			return nil, fmt.Errorf("%w: %s encoding %q has non-binary character %q", ErrMalformedAnnotation, level, bits, c)
		}
	}
	return keys, nil
}

// LoadRecords merges previously saved annotations into the store.
// Nothing changes unless every annotation decodes.
func (s *Store) LoadRecords(annotations []domain.Annotation) error {
	type decoded struct {
		id        string
		labels    []string
		subLabels []string
	}

	all := make([]decoded, 0, len(annotations))
	for _, a := range annotations {
		if a.ID == DefaultID {
			return fmt.Errorf("load: %w: %q", ErrReservedID, a.ID)
		}
		labels, err := s.Decode(domain.TopLevel, a.LabelEncoding)
		if err != nil {
			return fmt.Errorf("load %s: %w", a.ID, err)
		}
		subLabels, err := s.Decode(domain.Sub, a.SubLabelEncoding)
		if err != nil {
			return fmt.Errorf("load %s: %w", a.ID, err)
		}
		all = append(all, decoded{id: a.ID, labels: labels, subLabels: subLabels})
	}

	for _, d := range all {
		r := s.getOrCreate(d.id)
		for _, k := range d.labels {
			r.Labels.Add(k)
		}
		for _, k := range d.subLabels {
			r.SubLabels.Add(k)
		}
	}
	return nil
}

// Record returns the record for id, if any
func (s *Store) Record(id string) (*Record, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Records returns every record except the sentinel, in insertion order
func (s *Store) Records() []*Record {
	out := make([]*Record, 0, len(s.records)-1)
	for _, r := range s.records {
		if r.ID == DefaultID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Annotations encodes every non-sentinel record
func (s *Store) Annotations() ([]domain.Annotation, error) {
	var out []domain.Annotation
	for _, r := range s.Records() {
		labels, err := s.Encode(r.ID, domain.TopLevel)
		if err != nil {
			return nil, err
		}
		subLabels, err := s.Encode(r.ID, domain.Sub)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Annotation{ID: r.ID, LabelEncoding: labels, SubLabelEncoding: subLabels})
	}
	return out, nil
}

// OutputAnnotations renders every non-sentinel record as id,labels,subLabels lines
func (s *Store) OutputAnnotations() (string, error) {
	annotations, err := s.Annotations()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := WriteAnnotations(&sb, annotations); err != nil {
		return "", err
	}
	return sb.String(), nil
}
