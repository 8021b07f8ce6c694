// Package governance holds the execution safety controls used by the pipeline
// engine and its HTTP front end: bounded attempts with a fixed retry delay,
// per-attempt deadlines enforced through context cancellation, and token
// bucket rate limiting for run submissions.
package governance
