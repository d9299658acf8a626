package wadlib

import "wadlib/internal/model"

// Database stores the operation and transfer history.
type Database interface {
	// CreateOperation records the start of a CLI operation.
	CreateOperation(operation string, parameters string) (*model.Operation, error)

	// FinishOperation stamps the end time and final status of an operation.
	FinishOperation(id int64, status string) error

	// ListOperations returns up to limit operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// RecordTransfer appends one install attempt. ID and a zero FinishedAt are filled in.
	RecordTransfer(t *model.TransferRecord) error

	// ListTransfers returns the install attempts for slug, oldest first.
	ListTransfers(slug string) ([]*model.TransferRecord, error)

	// Path returns the database location.
	Path() string

	// Migrate brings the schema to the latest version.
	Migrate() error

	// CheckMigrations reports whether the schema is current.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
