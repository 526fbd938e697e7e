package merge

import "errors"

var (
	// ErrUnsupportedTableKind is returned when no resolver is registered for a table kind.
	ErrUnsupportedTableKind = errors.New("unsupported table kind")
	// ErrSourceMissing is returned when an input table root does not exist.
	ErrSourceMissing = errors.New("source table missing")
	// ErrDestinationExists is returned when the merged root exists and recreation was not allowed.
	ErrDestinationExists = errors.New("merged table already exists")
	// ErrShardSetMismatch is returned when the two inputs do not hold the same shard names.
	ErrShardSetMismatch = errors.New("shard sets differ")

	// ErrMissingShard fails a single shard whose directory is absent on one side.
	ErrMissingShard = errors.New("shard directory missing")
	// ErrMissingIdentity fails a single shard whose identity marker is absent.
	ErrMissingIdentity = errors.New("shard identity marker missing")
	// ErrMissingTableKind fails a single shard whose table-kind directory is absent.
	ErrMissingTableKind = errors.New("table kind directory missing")

	// ErrIO marks a filesystem failure on a specific path.
	ErrIO = errors.New("io error")
	// ErrSchemaMismatch marks a rank entry whose records cannot be merged.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
