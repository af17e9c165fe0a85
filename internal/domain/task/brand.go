package task

import (
	"fmt"
	"net/url"
)

const TypeBrand = "BrandTask"

// BrandTask fetches one product page of a brand inside a category.
type BrandTask struct {
	Category string   `json:"category"`
	Brand    string   `json:"brand"`
	Page     int      `json:"page"`
	Ancestry []string `json:"path"`
}

func (t *BrandTask) TaskType() string {
	return TypeBrand
}

func (t *BrandTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *BrandTask) Path() string {
	p := fmt.Sprintf("/categories/%s/brands/%s/search/", url.PathEscape(t.Category), url.PathEscape(t.Brand))
	if t.Page > 1 {
		p += fmt.Sprintf("?page=%d", t.Page)
	}
	return p
}
