package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusReserved  Status = "reserved"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusReserved: true},
	StatusReserved:  {StatusConfirmed: true, StatusCancelled: true, StatusExpired: true},
	StatusConfirmed: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusExpired
}

// HoldsStock reports whether an order in this status still has units reserved.
func (s Status) HoldsStock() bool {
	return s == StatusReserved || s == StatusConfirmed
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Transition checks from -> to against the table.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
