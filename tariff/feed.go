// Package tariff supplies the hourly price series scenarios charge against.
// Feeds either synthesize prices locally or fetch them from a day-ahead
// market API.
package tariff

import (
	"context"

	"github.com/jakewins/price-signals/core/model"
)

// Feed produces one price per step for the requested horizon.
type Feed interface {
	Prices(ctx context.Context, horizon int) ([]model.EurPerKWh, error)
}

// Option configures a feed before a fetch. Options are feed specific and
// fail when applied to the wrong implementation.
type Option func(Feed) error

const errIncompatibleOption = "option %s does not apply to feed %T"
