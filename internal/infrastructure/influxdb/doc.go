// Package influxdb records frame telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every inspected
// datagram becomes one point in the knxnet_frames measurement, tagged with
// its service and outcome, so decode error rates and per-service traffic
// can be graphed over time. A capture run finishes with one point in
// knxnet_sessions.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteFrameMetric(influxdb.FrameMetric{Service: "TUNNELLING_REQUEST", Source: "stdin", TotalLength: 21})
//
// # Error Handling
//
// Writes are non-blocking and batched. Batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
