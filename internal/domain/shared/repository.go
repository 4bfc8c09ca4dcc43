package shared

// Filter holds list query options shared by the location and purchase order listings.
// Page is 1-based; a zero PageSize returns every row. Filters holds
// repository-specific equality filters such as "status" or "supplier_id".
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]interface{}
}
