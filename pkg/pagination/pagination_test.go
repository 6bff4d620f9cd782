package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=0&per_page=500", 1, 20, 0},
		{"?page=abc&per_page=-1", 1, 20, 0},
		{"?per_page=100", 1, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/bulk-codes/batches"+tt.query, nil)
			p := FromRequest(r)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult([]string{"a", "b"}, 45, Params{Page: 2, PerPage: 20, Offset: 20})
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrev)

	last := NewResult([]string{"x"}, 41, Params{Page: 3, PerPage: 20})
	assert.False(t, last.HasNext)
}

func TestNewResult_EmptyDataIsNotNil(t *testing.T) {
	res := NewResult[int](nil, 0, DefaultParams())
	assert.NotNil(t, res.Data)
	assert.Equal(t, 0, res.TotalPages)
	assert.False(t, res.HasNext)
}
