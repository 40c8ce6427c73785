// Package process runs task commands as subprocesses with output capture
// and graceful cancellation of the whole process group.
package process
