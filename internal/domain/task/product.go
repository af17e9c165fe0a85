package task

import "fmt"

const (
	TypeProduct  = "ProductTask"
	TypeComments = "CommentsTask"
)

type ProductTask struct {
	ID int64 `json:"id"`
}

func (t *ProductTask) TaskType() string {
	return TypeProduct
}

func (t *ProductTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *ProductTask) Path() string {
	return fmt.Sprintf("/product/%d/", t.ID)
}

// CommentsTask fetches one page of a product's comments.
type CommentsTask struct {
	ProductID int64 `json:"product_id"`
	Page      int   `json:"page"`
}

func (t *CommentsTask) TaskType() string {
	return TypeComments
}

func (t *CommentsTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

func (t *CommentsTask) Path() string {
	p := fmt.Sprintf("/product/%d/comments/", t.ProductID)
	if t.Page > 1 {
		p += fmt.Sprintf("?page=%d", t.Page)
	}
	return p
}
