// Package stream defines the push-based observable contract the harness
// materializes, plus a handful of operators used by scenarios: Map, Filter,
// SwitchMap, Delay, Using and the Scheduled/Of/Throw/Empty sources.
//
// It is deliberately small. Operators exist so that scenario files and tests
// have something realistic to pipe a marble source through; they are not a
// general reactive library.
//
// Contract: an observer sees zero or more Next calls followed by at most one
// Error or Complete. Subscriber enforces this for every producer.
package stream
