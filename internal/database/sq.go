package database

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// ErrBadQuery wraps failures to build a SQL statement.
var ErrBadQuery = errors.New("bad query")

// sqb builds statements with SQLite's ? placeholders.
var sqb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
