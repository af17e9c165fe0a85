package crawler

import (
	"testing"

	"digikala/crawler/internal/domain"
	"digikala/crawler/internal/domain/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(t *testing.T, e *Engine, tk task.Task, body string) *Outcome {
	t.Helper()
	out, err := e.Step(tk, []byte(body))
	require.NoError(t, err)
	return out
}

func TestEngine_Root(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	out := step(t, e, &task.RootTask{}, `{"status":200,"data":{"main_categories":{"categories":[{"code":"electronics"},{"code":"books"}]}}}`)

	assert.Equal(t, []task.Task{
		&task.CategoryTask{Code: "electronics", Ancestry: []string{}},
		&task.CategoryTask{Code: "books", Ancestry: []string{}},
	}, out.Tasks)
	assert.Empty(t, out.Reviews)
	assert.Empty(t, out.Comments)
}

func TestEngine_CategoryBranchesIntoChildren(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"status":200,"data":{
		"filters":{"categories":{"options":[{"code":"mobile-phone"},{"code":"tablet"}]},"brands":{"options":[{"code":"apple"}]}},
		"products":[{"id":1},{"id":2}],
		"pager":{"current_page":1,"total_pages":5}}}`

	out := step(t, e, &task.CategoryTask{Code: "electronics", Ancestry: []string{}}, body)

	assert.Equal(t, []task.Task{
		&task.CategoryTask{Code: "mobile-phone", Ancestry: []string{"electronics"}},
		&task.CategoryTask{Code: "tablet", Ancestry: []string{"electronics"}},
	}, out.Tasks, "one follow-up per child and nothing from the products field")
}

func TestEngine_CategoryEmptyFilterFallsThrough(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"data":{"filters":{"categories":{"options":[]}},"products":[{"id":3}],"pager":{"current_page":1,"total_pages":1}}}`

	out := step(t, e, &task.CategoryTask{Code: "tablet"}, body)
	assert.Equal(t, []task.Task{&task.ProductTask{ID: 3}}, out.Tasks)
}

func TestEngine_CategoryBrandBranch(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"data":{"filters":{"brands":{"options":[{"code":"samsung"},{"code":"xiaomi"}]}},"products":[{"id":1}],"pager":{"current_page":1,"total_pages":300}}}`

	out := step(t, e, &task.CategoryTask{Code: "mobile-phone", Ancestry: []string{"electronics"}}, body)
	assert.Equal(t, []task.Task{
		&task.BrandTask{Category: "mobile-phone", Brand: "samsung", Page: 1, Ancestry: []string{"electronics"}},
		&task.BrandTask{Category: "mobile-phone", Brand: "xiaomi", Page: 1, Ancestry: []string{"electronics"}},
	}, out.Tasks)
}

func TestEngine_CategoryProductPagination(t *testing.T) {
	e := NewEngine(DefaultPageCap)

	out := step(t, e, &task.CategoryTask{Code: "tablet"},
		`{"data":{"filters":[],"products":[{"id":10},{"id":11}],"pager":{"current_page":1,"total_pages":3}}}`)
	assert.Equal(t, []task.Task{
		&task.ProductTask{ID: 10},
		&task.ProductTask{ID: 11},
		&task.CategoryPageTask{Code: "tablet", Page: 2},
	}, out.Tasks)

	out = step(t, e, &task.CategoryPageTask{Code: "tablet", Page: 3},
		`{"data":{"products":[{"id":12}],"pager":{"current_page":3,"total_pages":3}}}`)
	assert.Equal(t, []task.Task{&task.ProductTask{ID: 12}}, out.Tasks)
}

func TestEngine_CategoryPageNeverRechecksFilters(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"data":{"filters":{"categories":{"options":[{"code":"other"}]}},"products":[{"id":20}],"pager":{"current_page":2,"total_pages":4}}}`

	out := step(t, e, &task.CategoryPageTask{Code: "tablet", Page: 2}, body)
	assert.Equal(t, []task.Task{
		&task.ProductTask{ID: 20},
		&task.CategoryPageTask{Code: "tablet", Page: 3},
	}, out.Tasks)
}

func TestEngine_CategoryPageIgnoresCap(t *testing.T) {
	e := NewEngine(100)
	out := step(t, e, &task.CategoryPageTask{Code: "tablet", Page: 150},
		`{"data":{"products":[],"pager":{"current_page":150,"total_pages":200}}}`)
	assert.Equal(t, []task.Task{&task.CategoryPageTask{Code: "tablet", Page: 151}}, out.Tasks)
}

func TestEngine_BrandPagination(t *testing.T) {
	e := NewEngine(100)
	tk := &task.BrandTask{Category: "mobile-phone", Brand: "samsung", Page: 99}

	out := step(t, e, tk, `{"data":{"products":[{"id":5}],"pager":{"current_page":99,"total_pages":150}}}`)
	assert.Equal(t, []task.Task{
		&task.ProductTask{ID: 5},
		&task.BrandTask{Category: "mobile-phone", Brand: "samsung", Page: 100},
	}, out.Tasks)

	tk.Page = 100
	out = step(t, e, tk, `{"data":{"products":[{"id":6}],"pager":{"current_page":100,"total_pages":150}}}`)
	assert.Equal(t, []task.Task{&task.ProductTask{ID: 6}}, out.Tasks, "cap reached")

	tk.Page = 2
	out = step(t, e, tk, `{"data":{"products":[],"pager":{"current_page":2,"total_pages":2}}}`)
	assert.Empty(t, out.Tasks)
}

func TestEngine_SmallPageCap(t *testing.T) {
	e := NewEngine(2)
	out := step(t, e, &task.CommentsTask{ProductID: 1, Page: 2},
		`{"data":{"media_comments":[],"pager":{"current_page":2,"total_pages":9}}}`)
	assert.Empty(t, out.Tasks)
}

func TestEngine_ProductReviews(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"data":{"product":{"id":77,
		"review":{"description":"Great phone"},
		"expert_reviews":{"review_sections":[
			{"title":"Design","sections":[
				{"template":"text","text":"Battery lasts long"},
				{"template":"image","image":"x.jpg"},
				{"template":"text","text":"Bright screen"}]},
			{"title":"Specs","sections":[{"template":"table","text":"ignored"}]}]}}}}`

	out := step(t, e, &task.ProductTask{ID: 77}, body)

	assert.Equal(t, []domain.Review{
		{Text: "Great phone"},
		{Text: "Battery lasts long"},
		{Text: "Bright screen"},
	}, out.Reviews)
	assert.Equal(t, []task.Task{&task.CommentsTask{ProductID: 77, Page: 1}}, out.Tasks)
}

func TestEngine_ProductWithoutReviewStillFetchesComments(t *testing.T) {
	e := NewEngine(DefaultPageCap)

	for name, body := range map[string]string{
		"absent review":        `{"data":{"product":{"id":8}}}`,
		"empty array review":   `{"data":{"product":{"id":8,"review":[],"expert_reviews":[]}}}`,
		"null description":     `{"data":{"product":{"id":8,"review":{"description":null}}}}`,
		"empty description":    `{"data":{"product":{"id":8,"review":{"description":""}}}}`,
		"no expert text items": `{"data":{"product":{"id":8,"expert_reviews":{"review_sections":[{"sections":[]}]}}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			out := step(t, e, &task.ProductTask{ID: 8}, body)
			assert.Empty(t, out.Reviews)
			assert.Equal(t, []task.Task{&task.CommentsTask{ProductID: 8, Page: 1}}, out.Tasks)
		})
	}
}

func TestEngine_Comments(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	body := `{"data":{
		"comments":[{"title":"Nice","body":"Works well","created_at":"2021-01-01"},{"title":null,"body":null,"created_at":"2021-01-01"}],
		"media_comments":[{"title":"Photo","body":"See image","created_at":"2021-02-03"}],
		"pager":{"current_page":1,"total_pages":2}}}`

	out := step(t, e, &task.CommentsTask{ProductID: 3, Page: 1}, body)

	assert.Equal(t, []domain.Comment{
		{ProductID: 3, Title: "Nice", Text: "Works well", Date: "2021-01-01"},
		{ProductID: 3, Title: "", Text: "", Date: "2021-01-01"},
		{ProductID: 3, Title: "Photo", Text: "See image", Date: "2021-02-03"},
	}, out.Comments)
	assert.Equal(t, []task.Task{&task.CommentsTask{ProductID: 3, Page: 2}}, out.Tasks)
}

func TestEngine_CommentsWithoutPrimaryList(t *testing.T) {
	e := NewEngine(DefaultPageCap)
	out := step(t, e, &task.CommentsTask{ProductID: 3, Page: 1},
		`{"data":{"media_comments":[{"title":"T","body":"B","created_at":"2020-05-05"}],"pager":{"current_page":1,"total_pages":1}}}`)

	assert.Equal(t, []domain.Comment{{ProductID: 3, Title: "T", Text: "B", Date: "2020-05-05"}}, out.Comments)
	assert.Empty(t, out.Tasks)
}

func TestEngine_CommentsCap(t *testing.T) {
	e := NewEngine(100)

	out := step(t, e, &task.CommentsTask{ProductID: 1, Page: 99},
		`{"data":{"comments":[],"media_comments":[],"pager":{"current_page":99,"total_pages":150}}}`)
	assert.Equal(t, []task.Task{&task.CommentsTask{ProductID: 1, Page: 100}}, out.Tasks)

	out = step(t, e, &task.CommentsTask{ProductID: 1, Page: 100},
		`{"data":{"comments":[],"media_comments":[],"pager":{"current_page":100,"total_pages":150}}}`)
	assert.Empty(t, out.Tasks)
}

func TestEngine_MalformedPayloads(t *testing.T) {
	e := NewEngine(DefaultPageCap)

	tests := []struct {
		name string
		task task.Task
		body string
	}{
		{"invalid json", &task.RootTask{}, `{"data":`},
		{"no data", &task.RootTask{}, `{"status":404}`},
		{"root without categories", &task.RootTask{}, `{"data":{}}`},
		{"listing without filters or products", &task.CategoryTask{Code: "x"}, `{"data":{"filters":{}}}`},
		{"listing without pager", &task.CategoryTask{Code: "x"}, `{"data":{"products":[]}}`},
		{"brand page without products", &task.BrandTask{Category: "x", Brand: "y", Page: 1}, `{"data":{"pager":{"current_page":1,"total_pages":1}}}`},
		{"product missing", &task.ProductTask{ID: 1}, `{"data":{}}`},
		{"comments without pager", &task.CommentsTask{ProductID: 1, Page: 1}, `{"data":{"media_comments":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Step(tt.task, []byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://api.test/v1/", URL("http://api.test/v1", &task.RootTask{}))
	assert.Equal(t, "http://api.test/v1/product/5/comments/?page=2",
		URL("http://api.test/v1/", &task.CommentsTask{ProductID: 5, Page: 2}))
}
