package domain

// LocalizedText holds the two display strings of a label
type LocalizedText struct {
	Zh string `json:"zh"`
	En string `json:"en"`
}

// In returns the text for lang ("zh" or "en"), falling back to Zh
func (t LocalizedText) In(lang string) string {
	if lang == "en" && t.En != "" {
		return t.En
	}
	return t.Zh
}

// SubLabelOption is a second-level taxonomy entry.
// Key is the stable identifier; ID and Label are presentation only.
type SubLabelOption struct {
	ID    string        `json:"id"`
	Label LocalizedText `json:"label"`
	Key   string        `json:"value"`
}

// LabelOption is a top-level taxonomy branch with its ordered sub-labels
type LabelOption struct {
	ID        string           `json:"id"`
	Label     LocalizedText    `json:"label"`
	Key       string           `json:"value"`
	SubLabels []SubLabelOption `json:"subLabels"`
}

// Level tells whether a key is a label or a sub-label
type Level int

const (
	TopLevel Level = iota
	Sub
)

func (l Level) String() string {
	if l == TopLevel {
		return "label"
	}
	return "sublabel"
}

// Annotation is one persisted line: id,labelBits,subLabelBits
type Annotation struct {
	ID               string `json:"id"`
	LabelEncoding    string `json:"label_encoding"`
	SubLabelEncoding string `json:"sub_label_encoding"`
}
