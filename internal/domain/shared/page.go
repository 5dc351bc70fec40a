package shared

// Page describes a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

// HasMore reports whether records remain beyond this window given the total
// number of matching records.
func (p Page) HasMore(total int64) bool {
	return int64(p.Offset+p.Limit) < total
}
