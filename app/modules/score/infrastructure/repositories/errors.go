package scoredb

import "errors"

var (
	// ErrNotFound indicates the requested player, score, demo or tweak does not exist.
	ErrNotFound = errors.New("score record not found")

	// ErrNoRowsAffected indicates an UPDATE or DELETE matched nothing.
	ErrNoRowsAffected = errors.New("no rows affected")
)
