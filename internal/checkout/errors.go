package checkout

import "errors"

var (
	// ErrNoPickupDate blocks checkout: the cart restriction or the store
	// schedule leaves no date inside the horizon.
	ErrNoPickupDate     = errors.New("no pickup date satisfies the cart")
	ErrDateUnavailable  = errors.New("pickup date is not available")
	ErrTimeUnavailable  = errors.New("pickup time is outside opening hours")
	ErrStoreUnavailable = errors.New("store is not available")
	ErrDuplicateSubmit  = errors.New("checkout already in progress")
)
