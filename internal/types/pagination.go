package types

import "strconv"

// Plan-independent pagination fallback, used for unauthenticated or system
// callers that have no plan context.
const DefaultPageSize = 10

// Page carries resolved pagination parameters for a list query.
type Page struct {
	Number int
	Size   int
}

// Offset returns the zero-based row offset for the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// PaginatedResponse is the standard envelope for list endpoints. Page size is
// governed by the requester's plan tier; Plan echoes which tier applied.
type PaginatedResponse struct {
	Plan       string  `json:"plan"`
	Count      int     `json:"count"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Next       *string `json:"next"`
	Previous   *string `json:"previous"`
	Results    any     `json:"results"`
}

// NewPaginatedResponse assembles the envelope from a total row count, the
// resolved page, and the page's results. Next/Previous are page numbers
// rendered as query strings relative to the request path.
func NewPaginatedResponse(plan PlanTier, total int, page Page, path string, results any) PaginatedResponse {
	totalPages := 1
	if page.Size > 0 {
		totalPages = (total + page.Size - 1) / page.Size
		if totalPages < 1 {
			totalPages = 1
		}
	}

	resp := PaginatedResponse{
		Plan:       string(plan),
		Count:      total,
		Page:       page.Number,
		TotalPages: totalPages,
		Results:    results,
	}
	if page.Number < totalPages {
		resp.Next = pageLink(path, page.Number+1)
	}
	if page.Number > 1 {
		resp.Previous = pageLink(path, page.Number-1)
	}
	return resp
}

func pageLink(path string, number int) *string {
	link := path + "?page=" + strconv.Itoa(number)
	return &link
}
