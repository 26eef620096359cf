// Package influxdb mirrors Furnace telemetry into InfluxDB v2.
//
// Each reading persisted by the telemetry writer can be copied as a point
// in the furnace_telemetry measurement, tagged with session_id, part_id,
// group and entity_id, so long-running trends can be charted with Flux or
// Grafana without loading the SQLite log table.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Warn("influxdb write failed", "error", err)
//	})
//	client.WriteReading(influxdb.Reading{SessionID: 12, EntityID: "sensor.t1", Value: 812.5})
//
// Writes are batched (batch_size points or every flush_interval seconds).
// SQLite stays the record of truth, so a lost batch is only logged.
package influxdb
