package domain

import (
	"errors"
	"strings"
)

// Query is a user-authored Overpass QL query.
type Query string

var (
	// ErrEmptyQuery indicates the query file was empty or whitespace.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrNoJSONOutput indicates the query does not request JSON output,
	// which would make the response unparseable.
	ErrNoJSONOutput = errors.New("query must declare [out:json]")
)

// Validate checks that the query is non-empty and requests JSON output.
func (q Query) Validate() error {
	if strings.TrimSpace(string(q)) == "" {
		return ErrEmptyQuery
	}
	if !strings.Contains(string(q), "[out:json]") {
		return ErrNoJSONOutput
	}
	return nil
}

// HasTimeout reports whether the query declares a server-side timeout.
// Queries without one run with the server default and risk mid-query cutoffs.
func (q Query) HasTimeout() bool {
	return strings.Contains(string(q), "[timeout:")
}
