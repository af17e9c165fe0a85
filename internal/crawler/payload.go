package crawler

import (
	"bytes"
	"encoding/json"

	"digikala/crawler/internal/domain"
)

// Listing is the decoded shape of a category search response.
type Listing interface {
	isListing()
}

// CategoryBranch lists nested categories; the tier still branches.
type CategoryBranch struct {
	Children []string
}

// BrandBranch lists the brands a category is split into.
type BrandBranch struct {
	Brands []string
}

// ProductPage is one page of products with its cursor.
type ProductPage struct {
	Products []int64
	Pager    domain.Pager
}

func (CategoryBranch) isListing() {}
func (BrandBranch) isListing()    {}
func (ProductPage) isListing()    {}

// ProductDetail holds the review texts found in a product response.
type ProductDetail struct {
	ID          int64
	Description string
	ExpertTexts []string
}

// CommentPage is one page of a product's comments, both sources merged.
type CommentPage struct {
	Comments []domain.Comment
	Pager    domain.Pager
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type codeRef struct {
	Code string `json:"code"`
}

type rootPayload struct {
	MainCategories json.RawMessage `json:"main_categories"`
}

type mainCategoriesPayload struct {
	Categories []codeRef `json:"categories"`
}

type listingPayload struct {
	Filters  json.RawMessage `json:"filters"`
	Products *[]productRef   `json:"products"`
	Pager    *domain.Pager   `json:"pager"`
}

type filtersPayload struct {
	Categories json.RawMessage `json:"categories"`
	Brands     json.RawMessage `json:"brands"`
}

type filterPayload struct {
	Options []codeRef `json:"options"`
}

type productRef struct {
	ID int64 `json:"id"`
}

type productPayload struct {
	Product json.RawMessage `json:"product"`
}

type productBody struct {
	ID            int64           `json:"id"`
	Review        json.RawMessage `json:"review"`
	ExpertReviews json.RawMessage `json:"expert_reviews"`
}

type reviewPayload struct {
	Description *string `json:"description"`
}

type expertReviewsPayload struct {
	ReviewSections []struct {
		Sections []struct {
			Template string  `json:"template"`
			Text     *string `json:"text"`
		} `json:"sections"`
	} `json:"review_sections"`
}

type commentsPayload struct {
	Comments      *[]commentPayload `json:"comments"`
	MediaComments []commentPayload  `json:"media_comments"`
	Pager         *domain.Pager     `json:"pager"`
}

type commentPayload struct {
	Title     *string         `json:"title"`
	Body      *string         `json:"body"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// unwrap returns the data object of an API response.
func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, malformed("invalid json: %v", err)
	}
	if isAbsent(env.Data) {
		return nil, malformed("response has no data (status %d)", env.Status)
	}
	return env.Data, nil
}

// isAbsent treats a missing key, null and the empty array the API uses for
// empty objects alike.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]"))
}

// decodeObject decodes raw into v unless it is absent.
func decodeObject(raw json.RawMessage, v interface{}) (bool, error) {
	if isAbsent(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func decodeRoot(data json.RawMessage) ([]string, error) {
	var root rootPayload
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, malformed("root: %v", err)
	}

	var main mainCategoriesPayload
	ok, err := decodeObject(root.MainCategories, &main)
	if err != nil {
		return nil, malformed("root main_categories: %v", err)
	}
	if !ok {
		return nil, malformed("root has no main_categories")
	}

	return codes(main.Categories), nil
}

// decodeListing decodes the first page of a category search. Nested
// categories take precedence over brands, brands over products.
func decodeListing(data json.RawMessage) (Listing, error) {
	var listing listingPayload
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, malformed("category listing: %v", err)
	}

	var filters filtersPayload
	if _, err := decodeObject(listing.Filters, &filters); err != nil {
		return nil, malformed("category filters: %v", err)
	}

	children, err := filterCodes(filters.Categories)
	if err != nil {
		return nil, malformed("categories filter: %v", err)
	}
	if len(children) > 0 {
		return CategoryBranch{Children: children}, nil
	}

	brands, err := filterCodes(filters.Brands)
	if err != nil {
		return nil, malformed("brands filter: %v", err)
	}
	if len(brands) > 0 {
		return BrandBranch{Brands: brands}, nil
	}

	return listing.productPage()
}

// decodeProductPage decodes a follow-up page of a collection already known
// to list products. Filters are not looked at.
func decodeProductPage(data json.RawMessage) (ProductPage, error) {
	var listing listingPayload
	if err := json.Unmarshal(data, &listing); err != nil {
		return ProductPage{}, malformed("product page: %v", err)
	}
	return listing.productPage()
}

func (l listingPayload) productPage() (ProductPage, error) {
	if l.Products == nil {
		return ProductPage{}, malformed("listing has neither a categories filter nor products")
	}
	if l.Pager == nil {
		return ProductPage{}, malformed("product listing has no pager")
	}

	ids := make([]int64, 0, len(*l.Products))
	for _, p := range *l.Products {
		ids = append(ids, p.ID)
	}

	return ProductPage{Products: ids, Pager: *l.Pager}, nil
}

func decodeProduct(data json.RawMessage) (ProductDetail, error) {
	var payload productPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ProductDetail{}, malformed("product: %v", err)
	}

	var body productBody
	ok, err := decodeObject(payload.Product, &body)
	if err != nil {
		return ProductDetail{}, malformed("product body: %v", err)
	}
	if !ok {
		return ProductDetail{}, malformed("response has no product")
	}

	detail := ProductDetail{ID: body.ID}

	var review reviewPayload
	if _, err := decodeObject(body.Review, &review); err != nil {
		return ProductDetail{}, malformed("product review: %v", err)
	}
	if review.Description != nil {
		detail.Description = *review.Description
	}

	var expert expertReviewsPayload
	if _, err := decodeObject(body.ExpertReviews, &expert); err != nil {
		return ProductDetail{}, malformed("expert reviews: %v", err)
	}
	for _, section := range expert.ReviewSections {
		for _, sub := range section.Sections {
			if sub.Template == "text" && sub.Text != nil {
				detail.ExpertTexts = append(detail.ExpertTexts, *sub.Text)
			}
		}
	}

	return detail, nil
}

func decodeComments(data json.RawMessage, productID int64) (CommentPage, error) {
	var payload commentsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return CommentPage{}, malformed("comments: %v", err)
	}
	if payload.Pager == nil {
		return CommentPage{}, malformed("comments have no pager")
	}

	page := CommentPage{Pager: *payload.Pager}
	if payload.Comments != nil {
		for _, c := range *payload.Comments {
			page.Comments = append(page.Comments, c.toComment(productID))
		}
	}
	for _, c := range payload.MediaComments {
		page.Comments = append(page.Comments, c.toComment(productID))
	}

	return page, nil
}

func (c commentPayload) toComment(productID int64) domain.Comment {
	comment := domain.Comment{
		ProductID: productID,
		Date:      rawString(c.CreatedAt),
	}
	if c.Title != nil {
		comment.Title = *c.Title
	}
	if c.Body != nil {
		comment.Text = *c.Body
	}
	return comment
}

// rawString returns a JSON string's value, or the literal text of any other
// JSON value. null becomes "".
func rawString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

func filterCodes(raw json.RawMessage) ([]string, error) {
	var filter filterPayload
	if _, err := decodeObject(raw, &filter); err != nil {
		return nil, err
	}
	return codes(filter.Options), nil
}

func codes(refs []codeRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Code != "" {
			out = append(out, r.Code)
		}
	}
	return out
}
