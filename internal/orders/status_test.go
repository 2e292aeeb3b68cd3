package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusPending, StatusReserved, StatusConfirmed, StatusDelivered, StatusCancelled, StatusExpired,
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusReserved}:    true,
		{StatusReserved, StatusConfirmed}:  true,
		{StatusReserved, StatusCancelled}:  true,
		{StatusReserved, StatusExpired}:    true,
		{StatusConfirmed, StatusDelivered}: true,
		{StatusConfirmed, StatusCancelled}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesAreImmutable(t *testing.T) {
	for _, from := range []Status{StatusDelivered, StatusCancelled, StatusExpired} {
		assert.True(t, from.Terminal())
		for _, to := range allStatuses {
			err := Transition(from, to)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		}
	}
}

func TestHoldsStock(t *testing.T) {
	assert.True(t, StatusReserved.HoldsStock())
	assert.True(t, StatusConfirmed.HoldsStock())
	assert.False(t, StatusPending.HoldsStock())
	assert.False(t, StatusDelivered.HoldsStock())
	assert.False(t, StatusExpired.HoldsStock())
}

func TestStatusValid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("shipped").Valid())
}
