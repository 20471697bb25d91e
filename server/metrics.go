package server

import "time"

// MetricsCollector is an optional interface for collecting server
// metrics. Implementations can send metrics to monitoring systems like
// Prometheus, StatsD, DataDog, etc. All methods must be non-blocking; if
// a method takes significant time it should dispatch the work
// asynchronously. The server never calls a nil collector.
type MetricsCollector interface {
	// RecordCommand records one middleware-gated command dispatch
	// (always-allowed commands are not recorded). cmd is the command's
	// protocol name, protocol.Command.String() (e.g. "ls", "open");
	// success is false when the command middleware did not return
	// protocol.ResultOK or the handler returned an error, and true
	// otherwise, including when the handler replied with a non-OK
	// AccessResult; duration spans the middleware call and the handler.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordConnection records one accepted connection. The server calls
	// it with accepted=true and reason "accepted".
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records one AUTH attempt outcome.
	RecordAuthentication(success bool, user string)
}
