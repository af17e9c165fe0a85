package task

import (
	"fmt"
	"net/url"
)

const (
	TypeCategory     = "CategoryTask"
	TypeCategoryPage = "CategoryPageTask"
)

// CategoryTask fetches the first search page of a category. The response
// decides whether the category branches further or lists products.
type CategoryTask struct {
	Code     string   `json:"code"`
	Ancestry []string `json:"path"` // ancestor category codes
}

func (t *CategoryTask) TaskType() string {
	return TypeCategory
}

func (t *CategoryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *CategoryTask) Path() string {
	return fmt.Sprintf("/categories/%s/search/", url.PathEscape(t.Code))
}

// CategoryPageTask fetches a follow-up product page of a category that is
// already known to list products.
type CategoryPageTask struct {
	Code     string   `json:"code"`
	Page     int      `json:"page"`
	Ancestry []string `json:"path"`
}

func (t *CategoryPageTask) TaskType() string {
	return TypeCategoryPage
}

func (t *CategoryPageTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *CategoryPageTask) Path() string {
	return fmt.Sprintf("/categories/%s/search/?page=%d", url.PathEscape(t.Code), t.Page)
}
