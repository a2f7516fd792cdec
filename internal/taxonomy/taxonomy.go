package taxonomy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pbaille/annot/internal/domain"
)

var (
	ErrConfigLoad = errors.New("config load")
	ErrUnknownKey = errors.New("unknown key")
	ErrNotFound   = errors.New("not found")
)

// Taxonomy is the immutable label hierarchy plus the bit position of every key
type Taxonomy struct {
	options   []domain.LabelOption
	positions map[string]int

	// inverse of positions, one slice per level, indexed by bit offset
	labelAt []string
	subAt   []string
}

// Load reads the label options and positions files (JSON) and builds a Taxonomy
func Load(optionsPath, positionsPath string) (*Taxonomy, error) {
	data, err := os.ReadFile(optionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read label options: %v", ErrConfigLoad, err)
	}
	var options []domain.LabelOption
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, fmt.Errorf("%w: parse label options: %v", ErrConfigLoad, err)
	}

	data, err = os.ReadFile(positionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read positions: %v", ErrConfigLoad, err)
	}
	var positions map[string]int
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("%w: parse positions: %v", ErrConfigLoad, err)
	}

	return New(options, positions)
}

// New builds a Taxonomy. Every label and sub-label key must have a position
// that fits its level's width and is not shared with another key of the same level.
func New(options []domain.LabelOption, positions map[string]int) (*Taxonomy, error) {
	t := &Taxonomy{
		options:   options,
		positions: make(map[string]int, len(positions)),
	}
	for k, v := range positions {
		t.positions[k] = v
	}

	var labelKeys, subKeys []string
	for _, opt := range options {
		labelKeys = append(labelKeys, opt.Key)
		for _, sub := range opt.SubLabels {
			subKeys = append(subKeys, sub.Key)
		}
	}

	var err error
	if t.labelAt, err = t.invert(labelKeys); err != nil {
		return nil, err
	}
	if t.subAt, err = t.invert(subKeys); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Taxonomy) invert(keys []string) ([]string, error) {
	at := make([]string, len(keys))
	for _, k := range keys {
		pos, ok := t.positions[k]
		if !ok {
			return nil, fmt.Errorf("%w: no position for key %q", ErrConfigLoad, k)
		}
		if pos < 0 || pos >= len(keys) {
			return nil, fmt.Errorf("%w: position %d of key %q outside width %d", ErrConfigLoad, pos, k, len(keys))
		}
		if at[pos] != "" {
			return nil, fmt.Errorf("%w: keys %q and %q share position %d", ErrConfigLoad, at[pos], k, pos)
		}
		at[pos] = k
	}
	return at, nil
}

// Options returns the label options in taxonomy order
func (t *Taxonomy) Options() []domain.LabelOption {
	return t.options
}

// PositionOf returns the bit offset of key
func (t *Taxonomy) PositionOf(key string) (int, error) {
	pos, ok := t.positions[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return pos, nil
}

// KeyAt returns the key of the given level sitting at bit offset pos
func (t *Taxonomy) KeyAt(level domain.Level, pos int) (string, bool) {
	at := t.labelAt
	if level == domain.Sub {
		at = t.subAt
	}
	if pos < 0 || pos >= len(at) {
		return "", false
	}
	return at[pos], true
}

// IsTopLevelLabel reports whether key is one of the label option keys
func (t *Taxonomy) IsTopLevelLabel(key string) bool {
	for _, opt := range t.options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// ParentOf returns the label owning subKey and the other sub-labels of that label
func (t *Taxonomy) ParentOf(subKey string) (string, []string, error) {
	for _, opt := range t.options {
		found := false
		var siblings []string
		for _, sub := range opt.SubLabels {
			if sub.Key == subKey {
				found = true
				continue
			}
			siblings = append(siblings, sub.Key)
		}
		if found {
			return opt.Key, siblings, nil
		}
	}
	return "", nil, fmt.Errorf("%w: parent of %q", ErrNotFound, subKey)
}

// Display returns the localized text of a label or sub-label key
func (t *Taxonomy) Display(key string) (domain.LocalizedText, bool) {
	for _, opt := range t.options {
		if opt.Key == key {
			return opt.Label, true
		}
		for _, sub := range opt.SubLabels {
			if sub.Key == key {
				return sub.Label, true
			}
		}
	}
	return domain.LocalizedText{}, false
}
