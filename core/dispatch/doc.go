// Package dispatch runs the merit-order dispatch of a microgrid timestep.
//
// The Dispatcher decomposes the topology into circuits, matches each circuit's
// demand against its supply (largest circuit first) and merges the circuit
// proposals into one state vector. The Manager wraps a Dispatcher with the
// side effects of a timestep: metrics, the dispatch log, bus events and MQTT
// set-points.
package dispatch
