// Package daemon assembles the scheduler process: it loads the
// configuration, selects the storage backend, wires the mail transport
// and trigger processor into the polling scheduler and serves the gRPC
// health endpoint until shutdown.
package daemon
