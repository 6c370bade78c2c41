package errors

import "errors"

var (
	ErrNotFound = errors.New("station not found")

	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)
