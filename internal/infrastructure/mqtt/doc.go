// Package mqtt publishes Furnace telemetry to an MQTT broker.
//
// When enabled, every reading persisted by the telemetry writer is also
// published as JSON on
//
//	{prefix}/telemetry/{session_id}/{entity_id}
//
// so dashboards and other plant systems can follow a run live without
// polling the REST API. A retained message on {prefix}/system/status
// tracks whether the logger is online; the broker's Last Will flips it to
// offline if the process dies.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Telemetry(12, "sensor.t1"), reading)
//
// Publishing is best effort. The SQLite row is the record of truth; a
// failed publish is logged by the caller and never retried.
package mqtt
