package mappackdb

import "errors"

var (
	// ErrNotFound indicates the requested mappack, highscoreable or map data does not exist.
	ErrNotFound = errors.New("mappack record not found")

	// ErrNoRowsAffected indicates an UPDATE or DELETE matched nothing.
	ErrNoRowsAffected = errors.New("no rows affected")
)
