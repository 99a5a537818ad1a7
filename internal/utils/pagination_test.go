package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paginationFor(t *testing.T, target string) Pagination {
	t.Helper()

	var got Pagination
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	resp.Body.Close()
	return got
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   Pagination
	}{
		{"defaults", "/", Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"explicit", "/?page=3&limit=10", Pagination{Page: 3, Limit: 10, Offset: 20}},
		{"limit capped", "/?limit=500", Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"negative page", "/?page=-1", Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"garbage values", "/?page=abc&limit=xyz", Pagination{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paginationFor(t, tt.target))
		})
	}
}
