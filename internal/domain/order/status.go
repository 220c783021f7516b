package order

// Status is the closed set of order lifecycle states.
type Status string

const (
	StatusAwaitingPayment  Status = "AWAITING_PAYMENT"
	StatusAwaitingShipping Status = "AWAITING_SHIPPING"
	StatusShipped          Status = "SHIPPED"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
	StatusReturnRequested  Status = "RETURN_REQUESTED"
	StatusReturned         Status = "RETURNED"
)

// validNext is the allowed-transition table. A rejected return moves the
// order from RETURN_REQUESTED back to COMPLETED.
var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment:  {StatusAwaitingShipping: true, StatusCancelled: true},
	StatusAwaitingShipping: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:          {StatusCompleted: true},
	StatusCompleted:        {StatusReturnRequested: true},
	StatusReturnRequested:  {StatusReturned: true, StatusCompleted: true},
	StatusCancelled:        {},
	StatusReturned:         {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no further transition can leave the status.
func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}
