package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lakeql/nlsearch/internal/domain"
)

func TestHighlightRows_WrapsMatchedTermsInStringColumns(t *testing.T) {
	h := NewHighlighter("홍길동", "", "")
	rows := []domain.Row{{"name": "홍길동", "amount": 100}}

	got := h.HighlightRows(rows)
	assert.Equal(t, "«홍길동»", got[0]["name"])
	assert.Equal(t, 100, got[0]["amount"])
}

func TestHighlightRows_EscapesHTMLBeforeWrapping(t *testing.T) {
	h := NewHighlighter("alice", "", "")
	rows := []domain.Row{{"name": "<script>alice</script>"}}

	got := h.HighlightRows(rows)
	assert.Equal(t, "&lt;script&gt;«alice»&lt;/script&gt;", got[0]["name"])
}

func TestHighlightRows_EmptyQueryStillEscapesButNeverMatches(t *testing.T) {
	h := NewHighlighter("", "", "")
	rows := []domain.Row{{"name": "<b>bold</b>"}}

	got := h.HighlightRows(rows)
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", got[0]["name"])
}

func TestPaginate_ComputesPageInfo(t *testing.T) {
	rows := make([]domain.Row, 25)
	for i := range rows {
		rows[i] = domain.Row{"id": i}
	}

	page, info := Paginate(rows, 20, 10)
	assert.Len(t, page, 5)
	assert.Equal(t, 3, info.Page)
	assert.Equal(t, 3, info.Pages)
	assert.True(t, info.HasPrev)
	assert.False(t, info.HasNext)
}

func TestPaginate_FirstPage(t *testing.T) {
	rows := make([]domain.Row, 25)
	page, info := Paginate(rows, 0, 10)
	assert.Len(t, page, 10)
	assert.Equal(t, 1, info.Page)
	assert.False(t, info.HasPrev)
	assert.True(t, info.HasNext)
}

func TestPaginate_OffsetBeyondTotalReturnsEmptyPage(t *testing.T) {
	rows := make([]domain.Row, 5)
	page, info := Paginate(rows, 100, 10)
	assert.Empty(t, page)
	assert.Equal(t, 5, info.Total)
}
