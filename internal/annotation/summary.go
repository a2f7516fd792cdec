package annotation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pbaille/annot/internal/domain"
)

// Count is the number of records a key is active on
type Count struct {
	Key     string               `json:"key"`
	Display domain.LocalizedText `json:"display"`
	Records int                  `json:"records"`
}

// Summary holds label and sub-label counts. Summarize orders keys as first
// seen, SummarizeByTaxonomy as the taxonomy does.
type Summary struct {
	Labels    []Count `json:"labels"`
	SubLabels []Count `json:"sub_labels"`
}

type counter struct {
	order []string
	n     map[string]int
}

func (c *counter) inc(key string) {
	if c.n == nil {
		c.n = make(map[string]int)
	}
	if _, ok := c.n[key]; !ok {
		c.order = append(c.order, key)
	}
	c.n[key]++
}

// Summarize counts active keys across all non-sentinel records
func (s *Store) Summarize() Summary {
	var labels, subLabels counter
	for _, r := range s.Records() {
		for _, k := range r.Labels.keys {
			labels.inc(k)
		}
		for _, k := range r.SubLabels.keys {
			subLabels.inc(k)
		}
	}
	return Summary{
		Labels:    s.counts(labels),
		SubLabels: s.counts(subLabels),
	}
}

// SummarizeByTaxonomy is Summarize with keys in taxonomy order. Unlike
// first-seen order it survives a reload from encoded annotations, which
// rebuilds every record in bit order.
func (s *Store) SummarizeByTaxonomy() Summary {
	sum := s.Summarize()
	s.sortByTaxonomy(sum.Labels, s.sentinel().Labels)
	s.sortByTaxonomy(sum.SubLabels, s.sentinel().SubLabels)
	return sum
}

func (s *Store) sortByTaxonomy(counts []Count, all *KeySet) {
	rank := make(map[string]int, all.Len())
	for i, k := range all.keys {
		rank[k] = i
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return rank[counts[i].Key] < rank[counts[j].Key]
	})
}

func (s *Store) counts(c counter) []Count {
	out := make([]Count, 0, len(c.order))
	for _, k := range c.order {
		display, _ := s.tax.Display(k)
		out = append(out, Count{Key: k, Display: display, Records: c.n[k]})
	}
	return out
}

// Text renders the summary as [display]:count lines, labels first,
// then a blank line, then sub-labels
func (sum Summary) Text(lang string) string {
	var sb strings.Builder
	for _, c := range sum.Labels {
		fmt.Fprintf(&sb, "[%s]:%d\n", c.Display.In(lang), c.Records)
	}
	sb.WriteString("\n")
	for _, c := range sum.SubLabels {
		fmt.Fprintf(&sb, "[%s]:%d\n", c.Display.In(lang), c.Records)
	}
	return sb.String()
}
