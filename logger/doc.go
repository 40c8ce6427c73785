// Package logger provides structured logging for taskgraph using zerolog.
//
// Loggers are created from Config and passed explicitly to the components
// that need them; there is no process-wide logger. Component, run and task
// scoped loggers carry their identifiers as structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "coordinator").WithRun(runID)
//	log.Info("task started", logger.Fields(logger.FieldTaskID, id))
package logger
