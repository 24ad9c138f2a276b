package catalog

import "fmt"

// Operation names a status transition.
type Operation string

const (
	OpLoan    Operation = "loan"
	OpReturn  Operation = "return"
	OpReserve Operation = "reserve"
	// OpSet is the unchecked administrative overwrite.
	OpSet Operation = "set"
)

type transition struct {
	from Status
	to   Status
}

// Nothing leaves StatusReserved.
var transitions = map[Operation]transition{
	OpLoan:    {from: StatusAvailable, to: StatusLoaned},
	OpReturn:  {from: StatusLoaned, to: StatusAvailable},
	OpReserve: {from: StatusAvailable, to: StatusReserved},
}

// Next returns the status an item moves to when op is applied in current.
func Next(op Operation, current Status) (Status, error) {
	t, ok := transitions[op]
	if !ok {
		return "", fmt.Errorf("unknown operation %q", op)
	}
	if current != t.from {
		return "", ErrNotAvailable
	}
	return t.to, nil
}
