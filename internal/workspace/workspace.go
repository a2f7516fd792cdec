package workspace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pbaille/annot/internal/annotation"
	"github.com/pbaille/annot/internal/domain"
)

// Workspace is the data folder: record files plus the files annot writes
type Workspace struct {
	dir            string
	annotationFile string
	summaryFile    string
}

// Open prepares dir, creating it if needed
func Open(dir, annotationFile, summaryFile string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Workspace{dir: dir, annotationFile: annotationFile, summaryFile: summaryFile}, nil
}

// Dir returns the data folder path
func (w *Workspace) Dir() string {
	return w.dir
}

// IsRecordFile reports whether name is a data file that can be annotated
func (w *Workspace) IsRecordFile(name string) bool {
	if name == w.annotationFile {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tsv" || ext == ".csv"
}

// Files lists the record files of the folder, sorted by name
func (w *Workspace) Files() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !w.IsRecordFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Content returns what should be shown for a record file: TSV files
// verbatim, CSV files as the fourth column of each row that has one
func (w *Workspace) Content(id string) (string, error) {
	path := filepath.Join(w.dir, filepath.Base(id))
	if strings.EqualFold(filepath.Ext(id), ".tsv") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read record: %w", err)
		}
		return string(data), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read record: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var lines []string
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse record: %w", err)
		}
		if len(fields) > 3 {
			lines = append(lines, fields[3])
		}
	}
	return strings.Join(lines, "\n"), nil
}

// WriteEncoding writes "<labels>,<subLabels>" to <record base name>.txt
func (w *Workspace) WriteEncoding(id, labels, subLabels string) error {
	name := strings.TrimSuffix(filepath.Base(id), filepath.Ext(id)) + ".txt"
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(labels+","+subLabels), 0644); err != nil {
		return fmt.Errorf("write encoding: %w", err)
	}
	return nil
}

// WriteSummary replaces the summary file
func (w *Workspace) WriteSummary(text string) error {
	if err := os.WriteFile(filepath.Join(w.dir, w.summaryFile), []byte(text), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReadAnnotations parses a saved annotation file
func ReadAnnotations(path string) ([]domain.Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return annotation.ParseAnnotations(f)
}

// Export writes the store's annotations to path, replacing any previous content
func Export(s *annotation.Store, path string) error {
	text, err := s.OutputAnnotations()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write annotations: %w", err)
	}
	return nil
}

func (w *Workspace) statePath() string {
	return filepath.Join(w.dir, w.annotationFile)
}

// LoadState rehydrates s from the workspace annotation file, if there is one
func (w *Workspace) LoadState(s *annotation.Store) error {
	annotations, err := ReadAnnotations(w.statePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.LoadRecords(annotations)
}

// SaveState writes s to the workspace annotation file
func (w *Workspace) SaveState(s *annotation.Store) error {
	return Export(s, w.statePath())
}

// Persist writes everything that follows a label change on record id:
// its encoding file, the summary and the annotation file
func (w *Workspace) Persist(s *annotation.Store, id, lang string) error {
	labels, err := s.Encode(id, domain.TopLevel)
	if err != nil {
		return err
	}
	subLabels, err := s.Encode(id, domain.Sub)
	if err != nil {
		return err
	}
	if err := w.WriteEncoding(id, labels, subLabels); err != nil {
		return err
	}
	if err := w.WriteSummary(s.SummarizeByTaxonomy().Text(lang)); err != nil {
		return err
	}
	return w.SaveState(s)
}

// Import replaces the store content with previously saved annotations.
// Only ids present in the folder are kept, unless the folder holds no record
// files. On failure the store is left as it was. Returns the number of
// records loaded and the number of annotations dropped for naming no file
// of the folder.
func (w *Workspace) Import(s *annotation.Store, annotations []domain.Annotation) (loaded, dropped int, err error) {
	files, err := w.Files()
	if err != nil {
		return 0, 0, err
	}
	if len(files) > 0 {
		known := make(map[string]bool, len(files))
		for _, f := range files {
			known[f] = true
		}
		kept := annotations[:0:0]
		for _, a := range annotations {
			if known[a.ID] {
				kept = append(kept, a)
			}
		}
		dropped = len(annotations) - len(kept)
		annotations = kept
	}

	previous, err := s.Annotations()
	if err != nil {
		return 0, 0, err
	}
	s.Reset()
	if err := s.LoadRecords(annotations); err != nil {
		s.Reset()
		if rerr := s.LoadRecords(previous); rerr != nil {
			return 0, 0, errors.Join(err, rerr)
		}
		return 0, 0, err
	}
	return len(s.Records()), dropped, nil
}
