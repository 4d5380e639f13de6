// Package search models the certificate search API: the paged request body
// sent to the inventory service and the response it returns.
package search

import (
	"fmt"
	"strings"
)

// Path is the certificate search endpoint, relative to the service base URL.
const Path = "/outagedetection/v1/certificatesearch"

// Direction is a sort direction understood by the search API.
type Direction string

const (
	// Ascending sorts from lowest to highest.
	Ascending Direction = "ASC"

	// Descending sorts from highest to lowest.
	Descending Direction = "DESC"
)

// ParseDirection parses a sort direction case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (want ASC or DESC)", s)
	}
}

// OperatorMatch is the exact-match filter operator.
const OperatorMatch = "MATCH"

// Request is the JSON body of a single certificate search call.
type Request struct {
	Expression Expression `json:"expression"`
	Ordering   Ordering   `json:"ordering"`
	Paging     Paging     `json:"paging"`
}

// Expression is a filter; all operands must hold.
type Expression struct {
	Operands []Operand `json:"operands"`
}

// Operand is a single field/operator/value filter condition.
type Operand struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Ordering lists the sort keys applied server-side.
type Ordering struct {
	Orders []Order `json:"orders"`
}

// Order is one sort key.
type Order struct {
	Direction Direction `json:"direction"`
	Field     string    `json:"field"`
}

// Paging selects a zero-based page of fixed size.
type Paging struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// Criteria holds everything about a search that stays fixed across pages.
type Criteria struct {
	// StatusFilter is matched against the certificateStatus field (e.g. "ACTIVE").
	StatusFilter string

	// SortField is the field the server orders results by.
	SortField string

	// SortDirection is ASC or DESC.
	SortDirection Direction

	// PageSize is the number of records requested per page.
	PageSize int
}

// DefaultCriteria returns the criteria for exporting all active certificates,
// newest name first, 250 per page.
func DefaultCriteria() Criteria {
	return Criteria{
		StatusFilter:  "ACTIVE",
		SortField:     "certificateName",
		SortDirection: Descending,
		PageSize:      250,
	}
}

// Validate checks that the criteria can produce a well-formed request.
func (c Criteria) Validate() error {
	if c.StatusFilter == "" {
		return fmt.Errorf("status filter is required")
	}
	if c.SortField == "" {
		return fmt.Errorf("sort field is required")
	}
	if _, err := ParseDirection(string(c.SortDirection)); err != nil {
		return err
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0 (got %d)", c.PageSize)
	}
	return nil
}

// Request builds the search body for the given zero-based page.
func (c Criteria) Request(page int) Request {
	return Request{
		Expression: Expression{
			Operands: []Operand{{
				Field:    "certificateStatus",
				Operator: OperatorMatch,
				Value:    c.StatusFilter,
			}},
		},
		Ordering: Ordering{
			Orders: []Order{{
				Direction: c.SortDirection,
				Field:     c.SortField,
			}},
		},
		Paging: Paging{
			PageNumber: page,
			PageSize:   c.PageSize,
		},
	}
}
