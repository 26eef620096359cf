// Package sensorgroup turns operator-supplied sensor-group text into
// persisted reference data.
//
// Three pieces cooperate at startup:
//
//   - Parse reads the definition text. Two grammars may be mixed freely:
//
//     furnace_a = sensor.zone1_temp, sensor.zone2_temp
//
//     quench_tank:
//     - sensor.tank_temp
//     * sensor.tank_level
//
//   - Version derives an order-independent digest of a group's sensor ids.
//     A change in composition yields a new version; a reordering does not.
//
//   - Synchronizer writes each definition to the store as one transaction:
//     the group row is found or created by (name, version) and every sensor
//     is repointed to it. A failing group is rolled back, logged and skipped.
//
// The SQLite repository also serves the REST layer's sensor-group endpoints.
package sensorgroup
