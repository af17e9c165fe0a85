package domain

// Review is a single piece of review text: a product's top-level review or
// one text subsection of its expert review.
type Review struct {
	Text string `json:"text"`
}

// Comment is a user comment on a product. Title and Text are never null on
// the wire side of a sink; Date is passed through as the API returned it.
type Comment struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Date      string `json:"date"`
}

// Size is the number of bytes the review occupies in the text export.
func (r Review) Size() int64 {
	return int64(len(r.Text) + 1)
}

func (c Comment) Size() int64 {
	return int64(len(c.Title) + len(c.Text) + len(c.Date))
}
