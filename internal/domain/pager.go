package domain

// Pager is the page cursor attached to every paginated collection.
type Pager struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// HasNext reports whether another page should be requested. A cap of zero
// disables the cap.
func (p Pager) HasNext(pageCap int) bool {
	if p.CurrentPage >= p.TotalPages {
		return false
	}
	if pageCap > 0 && p.CurrentPage >= pageCap {
		return false
	}
	return true
}
