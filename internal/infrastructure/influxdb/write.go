package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointWithTime writes one point at timestamp. Points without fields
// are dropped because InfluxDB rejects them.
//
// Example:
//
//	client.WritePointWithTime("water", map[string]string{"entity": "pump"},
//	    map[string]any{"duration_seconds": 5.0, "watered": true}, time.Now())
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// WriteTemperature records one temperature reading in degrees Celsius.
func (c *Client) WriteTemperature(location string, celsius float64, timestamp time.Time) {
	c.WritePointWithTime("temperature",
		map[string]string{"location": location},
		map[string]any{"celsius": celsius},
		timestamp,
	)
}
