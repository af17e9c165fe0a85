package crawler

import (
	"fmt"
	"strings"

	"digikala/crawler/internal/domain"
	"digikala/crawler/internal/domain/task"

	log "github.com/sirupsen/logrus"
)

// DefaultPageCap is the deepest page the API serves for brand and comment
// listings.
const DefaultPageCap = 100

// Outcome is everything a step produces from one response: further tasks to
// fetch and records to emit.
type Outcome struct {
	Tasks    []task.Task
	Reviews  []domain.Review
	Comments []domain.Comment
}

// Engine turns one fetched response into the next tasks and records. It
// holds no state between steps and is safe for concurrent use.
type Engine struct {
	pageCap int
}

func NewEngine(pageCap int) *Engine {
	return &Engine{pageCap: pageCap}
}

// URL joins the API base and the task's resource path.
func URL(baseURL string, t task.Task) string {
	return strings.TrimRight(baseURL, "/") + t.Path()
}

// Step dispatches a response body to the step bound to the task's type.
func (e *Engine) Step(t task.Task, body []byte) (*Outcome, error) {
	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	switch t := t.(type) {
	case *task.RootTask:
		return e.root(data)
	case *task.CategoryTask:
		return e.category(t, data)
	case *task.CategoryPageTask:
		return e.categoryPage(t, data)
	case *task.BrandTask:
		return e.brand(t, data)
	case *task.ProductTask:
		return e.product(t, data)
	case *task.CommentsTask:
		return e.comments(t, data)
	default:
		return nil, fmt.Errorf("no step for task type %s", t.TaskType())
	}
}

func (e *Engine) root(data []byte) (*Outcome, error) {
	mainCategories, err := decodeRoot(data)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	for _, code := range mainCategories {
		out.Tasks = append(out.Tasks, &task.CategoryTask{Code: code, Ancestry: []string{}})
	}
	return out, nil
}

func (e *Engine) category(t *task.CategoryTask, data []byte) (*Outcome, error) {
	listing, err := decodeListing(data)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", t.Code, err)
	}

	out := &Outcome{}
	switch l := listing.(type) {
	case CategoryBranch:
		log.Debugf("Category %s (under %v) has %d subcategories", t.Code, t.Ancestry, len(l.Children))
		ancestry := extend(t.Ancestry, t.Code)
		for _, child := range l.Children {
			out.Tasks = append(out.Tasks, &task.CategoryTask{Code: child, Ancestry: ancestry})
		}
	case BrandBranch:
		log.Debugf("Category %s (under %v) splits into %d brands", t.Code, t.Ancestry, len(l.Brands))
		for _, brand := range l.Brands {
			out.Tasks = append(out.Tasks, &task.BrandTask{
				Category: t.Code,
				Brand:    brand,
				Page:     1,
				Ancestry: t.Ancestry,
			})
		}
	case ProductPage:
		out.Tasks = productTasks(l.Products)
		if l.Pager.HasNext(0) {
			out.Tasks = append(out.Tasks, &task.CategoryPageTask{
				Code:     t.Code,
				Page:     l.Pager.CurrentPage + 1,
				Ancestry: t.Ancestry,
			})
		}
	}
	return out, nil
}

// categoryPage continues a category that already listed products; it never
// looks at the filters again.
func (e *Engine) categoryPage(t *task.CategoryPageTask, data []byte) (*Outcome, error) {
	page, err := decodeProductPage(data)
	if err != nil {
		return nil, fmt.Errorf("category %s page %d: %w", t.Code, t.Page, err)
	}

	out := &Outcome{Tasks: productTasks(page.Products)}
	if page.Pager.HasNext(0) {
		out.Tasks = append(out.Tasks, &task.CategoryPageTask{
			Code:     t.Code,
			Page:     page.Pager.CurrentPage + 1,
			Ancestry: t.Ancestry,
		})
	}
	return out, nil
}

func (e *Engine) brand(t *task.BrandTask, data []byte) (*Outcome, error) {
	page, err := decodeProductPage(data)
	if err != nil {
		return nil, fmt.Errorf("brand %s/%s page %d: %w", t.Category, t.Brand, t.Page, err)
	}

	out := &Outcome{Tasks: productTasks(page.Products)}
	if page.Pager.HasNext(e.pageCap) {
		out.Tasks = append(out.Tasks, &task.BrandTask{
			Category: t.Category,
			Brand:    t.Brand,
			Page:     page.Pager.CurrentPage + 1,
			Ancestry: t.Ancestry,
		})
	}
	return out, nil
}

func (e *Engine) product(t *task.ProductTask, data []byte) (*Outcome, error) {
	detail, err := decodeProduct(data)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", t.ID, err)
	}

	out := &Outcome{}
	if detail.Description != "" {
		out.Reviews = append(out.Reviews, domain.Review{Text: detail.Description})
	}
	for _, text := range detail.ExpertTexts {
		out.Reviews = append(out.Reviews, domain.Review{Text: text})
	}

	out.Tasks = append(out.Tasks, &task.CommentsTask{ProductID: t.ID, Page: 1})
	return out, nil
}

func (e *Engine) comments(t *task.CommentsTask, data []byte) (*Outcome, error) {
	page, err := decodeComments(data, t.ProductID)
	if err != nil {
		return nil, fmt.Errorf("comments of product %d page %d: %w", t.ProductID, t.Page, err)
	}

	out := &Outcome{Comments: page.Comments}
	if page.Pager.HasNext(e.pageCap) {
		out.Tasks = append(out.Tasks, &task.CommentsTask{
			ProductID: t.ProductID,
			Page:      page.Pager.CurrentPage + 1,
		})
	}
	return out, nil
}

func productTasks(ids []int64) []task.Task {
	tasks := make([]task.Task, 0, len(ids)+1)
	for _, id := range ids {
		tasks = append(tasks, &task.ProductTask{ID: id})
	}
	return tasks
}

func extend(path []string, code string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, code)
}
