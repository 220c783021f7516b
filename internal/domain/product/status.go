package product

// Status is the closed set of availability states.
type Status string

const (
	StatusOnSale   Status = "ON_SALE"
	StatusLocked   Status = "LOCKED"
	StatusSold     Status = "SOLD"
	StatusDelisted Status = "DELISTED"
)

var validNext = map[Status]map[Status]bool{
	StatusOnSale:   {StatusLocked: true, StatusDelisted: true},
	StatusLocked:   {StatusOnSale: true, StatusSold: true},
	StatusSold:     {},
	StatusDelisted: {StatusOnSale: true},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
