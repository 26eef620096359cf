// Package telemetry persists attributed sensor readings.
//
// The ingestion client resolves each hub event to a session, part and
// sensor and hands the result to a Writer. The Writer owns a bounded
// queue and exactly one goroutine that inserts rows into the logs table,
// so readings are committed in the order they were enqueued. When the
// queue is full Enqueue blocks, pushing back on the hub read loop instead
// of buffering without limit.
//
// After a row is stored the Writer offers the event to any configured
// Mirrors (MQTT publish, InfluxDB point). Mirror failures are logged and
// never affect the stored row.
//
// A failed insert is logged with its database.ErrorKind and the event is
// dropped. Delivery is at most once.
package telemetry
