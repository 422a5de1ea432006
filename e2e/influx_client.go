package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient is a small helper around the official InfluxDB v2 client used
// to verify what the run metrics sink wrote. It hides token/org/bucket
// plumbing.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a new client for the given parameters. It assumes
// the server is already running and reachable.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{
		bucket: bucket,
		client: c,
		query:  c.QueryAPI(org),
	}
}

// FieldValues returns the numeric values recorded for one field of one
// measurement over the last 15 minutes, one entry per point.
func (c *InfluxClient) FieldValues(ctx context.Context, measurement, field string) ([]float64, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
 |> range(start: -15m)
 |> filter(fn: (r) => r._measurement == %q and r._field == %q)`,
		c.bucket, measurement, field)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	var vals []float64
	for res.Next() {
		if v, ok := res.Record().Value().(float64); ok {
			vals = append(vals, v)
		}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return vals, nil
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
