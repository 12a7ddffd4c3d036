// Package influxdb records rpihome readings and state changes as time series.
//
// Writes are non-blocking and batched by the InfluxDB client; failures are
// reported asynchronously through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePointWithTime("switch", map[string]string{"entity": "lamp"},
//	    map[string]any{"enabled": true}, time.Now())
package influxdb
