package exp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnboundParameter is returned when a $param reaches evaluation or
	// SQL rendering without a value.
	ErrUnboundParameter = errors.New("unbound parameter")

	// ErrNotInMemory is returned for nodes that need the database, such as
	// subqueries.
	ErrNotInMemory = errors.New("expression cannot be evaluated in memory")

	// ErrUnknownFunction is returned for a function name with no in-memory
	// implementation or no parse mapping.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArity is returned for a portable function called with the wrong
	// number of arguments.
	ErrArity = errors.New("wrong number of arguments")
)

// ParseError reports a syntax error in the expression string syntax.
type ParseError struct {
	// Pos is the byte offset of the offending token.
	Pos int

	// Msg describes what was expected.
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse expression at offset %d: %s", e.Pos, e.Msg)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
