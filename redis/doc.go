// Package redis stores run snapshots in Redis using go-redis.
//
// Snapshots are JSON values under <prefix>:snapshot:<run id>; the id of the
// most recently saved run is kept under <prefix>:snapshot:latest so that a
// status query without a run id finds the last run.
package redis
