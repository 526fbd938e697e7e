// Package export publishes merged tables to object storage.
//
// The merge command calls it with --export once a merge finishes cleanly. Every file of
// the merged tree becomes one object named <prefix>/<shard>/<table-kind>/<key-dir>/<entry>.
// Objects that already exist under the prefix are skipped, so an interrupted export can
// simply be run again.
package export
