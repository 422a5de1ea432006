package tariff

import (
	"fmt"
	"time"
)

// WithStartDate sets the inclusive start of the market window.
func WithStartDate(startDate time.Time) Option {
	return func(f Feed) error {
		if c, ok := f.(*Client); ok {
			c.startDate = startDate
			return nil
		}
		return fmt.Errorf(errIncompatibleOption, "WithStartDate", f)
	}
}

// WithEndDate sets the exclusive end of the market window.
func WithEndDate(endDate time.Time) Option {
	return func(f Feed) error {
		if c, ok := f.(*Client); ok {
			c.endDate = endDate
			return nil
		}
		return fmt.Errorf(errIncompatibleOption, "WithEndDate", f)
	}
}

// WithBaseURL points the client at a different API root, the local mock in
// tests.
func WithBaseURL(baseURL string) Option {
	return func(f Feed) error {
		if c, ok := f.(*Client); ok {
			c.baseURL = baseURL
			return nil
		}
		return fmt.Errorf(errIncompatibleOption, "WithBaseURL", f)
	}
}
