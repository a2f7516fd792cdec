package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_FirstSeenOrder(t *testing.T) {
	s := newTestStore(t)

	// B is seen before A, so it is listed first
	require.NoError(t, s.AddLabel("f1", "B1"))
	require.NoError(t, s.AddLabel("f2", "A1"))
	require.NoError(t, s.AddLabel("f2", "B1"))
	require.NoError(t, s.AddLabel("f3", "A2"))

	sum := s.Summarize()
	require.Len(t, sum.Labels, 2)
	assert.Equal(t, "B", sum.Labels[0].Key)
	assert.Equal(t, 2, sum.Labels[0].Records)
	assert.Equal(t, "A", sum.Labels[1].Key)
	assert.Equal(t, 2, sum.Labels[1].Records)

	want := "[乙]:2\n[甲]:2\n\n[乙一]:2\n[甲一]:1\n[甲二]:1\n"
	assert.Equal(t, want, sum.Text("zh"))

	wantEn := "[Beta]:2\n[Alpha]:2\n\n[Beta one]:2\n[Alpha one]:1\n[Alpha two]:1\n"
	assert.Equal(t, wantEn, sum.Text("en"))
}

func TestSummarize_Empty(t *testing.T) {
	s := newTestStore(t)

	sum := s.Summarize()
	assert.Empty(t, sum.Labels)
	assert.Empty(t, sum.SubLabels)
	assert.Equal(t, "\n", sum.Text("zh"))
}

func TestSummarize_SkipsSentinel(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLabel("f1", "A"))

	sum := s.Summarize()
	require.Len(t, sum.Labels, 1)
	assert.Equal(t, 1, sum.Labels[0].Records)
	assert.Empty(t, sum.SubLabels)
}

func TestSummarizeByTaxonomy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddLabel("f1", "B1"))
	require.NoError(t, s.AddLabel("f2", "A2"))
	require.NoError(t, s.AddLabel("f2", "A1"))

	want := "[甲]:1\n[乙]:1\n\n[甲一]:1\n[甲二]:1\n[乙一]:1\n"
	assert.Equal(t, want, s.SummarizeByTaxonomy().Text("zh"))

	// rebuilding from the encoded state gives the same text
	annotations, err := s.Annotations()
	require.NoError(t, err)
	reloaded := newTestStore(t)
	require.NoError(t, reloaded.LoadRecords(annotations))
	assert.Equal(t, want, reloaded.SummarizeByTaxonomy().Text("zh"))
}
