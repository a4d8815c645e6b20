package internal

// DefaultPageSize is used for listing requests that do not name a limit of their own
const DefaultPageSize = 50

// Pagination selects a window of a listing. A Limit of zero returns everything from Offset on
type Pagination struct {
	Offset uint
	Limit  uint
}

// Search filters a paginated event listing by a term matched against the event names
type Search struct {
	Pagination
	Search string
}
