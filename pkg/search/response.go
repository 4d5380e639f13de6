package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedResponse is returned when a search response body cannot be
// decoded or lacks a required field.
var ErrMalformedResponse = errors.New("malformed search response")

// Response is one page of search results.
type Response struct {
	// Certificates holds the records on this page, in server order.
	Certificates []Record `json:"certificates"`

	// Count is the number of records the server reports for this page.
	Count int `json:"count"`
}

// wireResponse distinguishes absent fields from zero values.
type wireResponse struct {
	Certificates *[]Record `json:"certificates"`
	Count        *int      `json:"count"`
}

// DecodeResponse reads a search response. Both "certificates" and "count"
// must be present; anything else is ErrMalformedResponse.
func DecodeResponse(r io.Reader) (*Response, error) {
	var wire wireResponse
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if wire.Certificates == nil {
		return nil, fmt.Errorf("%w: missing \"certificates\"", ErrMalformedResponse)
	}
	if wire.Count == nil {
		return nil, fmt.Errorf("%w: missing \"count\"", ErrMalformedResponse)
	}

	return &Response{
		Certificates: *wire.Certificates,
		Count:        *wire.Count,
	}, nil
}
