package tariff

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jakewins/price-signals/core/model"
)

// Response is the payload of the wholesale market API. Prices arrive in
// euro per megawatt hour, one value per hour.
type Response struct {
	FrancePowerExchanges []Exchange `json:"france_power_exchanges"`
}

// Exchange is one published market window.
type Exchange struct {
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	UpdatedDate string  `json:"updated_date"`
	Values      []Value `json:"values"`
}

// Value is one hourly quotation inside a window.
type Value struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Value     float64 `json:"value"`
	Price     float64 `json:"price"`
}

// Series flattens the hourly prices into the simulator's unit, euro per
// kilowatt hour, and truncates to the requested horizon.
func (r *Response) Series(horizon int) ([]model.EurPerKWh, error) {
	var out []model.EurPerKWh
	for _, exchange := range r.FrancePowerExchanges {
		for _, v := range exchange.Values {
			out = append(out, model.EurPerKWh(v.Price/1000))
		}
	}
	if len(out) < horizon {
		return nil, fmt.Errorf("market window too short: need %d hourly prices, got %d", horizon, len(out))
	}
	return out[:horizon], nil
}

// PriceChartHTML renders the raw market prices as a standalone HTML line
// chart.
func (r *Response) PriceChartHTML() (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Day-Ahead Prices"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date & Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (EUR/MWh)"}),
	)

	var xAxis []string
	var yAxis []opts.LineData
	for _, exchange := range r.FrancePowerExchanges {
		for _, v := range exchange.Values {
			parsedTime, err := time.Parse(time.RFC3339, v.StartDate)
			if err != nil {
				return "", fmt.Errorf("failed to parse time: %v", err)
			}
			xAxis = append(xAxis, parsedTime.Format("2006-01-02 15:04"))
			yAxis = append(yAxis, opts.LineData{Value: v.Price})
		}
	}

	line.SetXAxis(xAxis).AddSeries("Price", yAxis)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %v", err)
	}
	return buf.String(), nil
}
