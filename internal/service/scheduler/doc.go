// Package scheduler drives the alarm delivery loop: poll the store for
// due reminders, claim each one through the lease and hand it to the
// trigger processor with bounded concurrency. Randomized jitter around
// every tick keeps replicas polling the same store out of step with
// each other.
package scheduler
