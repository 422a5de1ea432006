// Package forecast estimates near-term price levels from the series a run
// replays. Forecasts are optional but let threshold policies adapt to the
// tariff instead of hardcoding a limit.
package forecast
