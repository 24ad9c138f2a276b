package catalog

import "errors"

var (
	ErrNotFound     = errors.New("item not found")
	ErrNotAvailable = errors.New("item not available")
	ErrInvalidData  = errors.New("invalid item data")

	ErrHistoryUnavailable = errors.New("item history is not recorded")
)

// Error codes shared with clients of the catalog contract.
const (
	CodeNotFound     = 1
	CodeNotAvailable = 2
	CodeInvalidData  = 3
)

// Code maps err to its contract error code, or 0 when err is not one of the
// catalog failures.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotAvailable):
		return CodeNotAvailable
	case errors.Is(err, ErrInvalidData):
		return CodeInvalidData
	}
	return 0
}
