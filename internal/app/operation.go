package app

import "sync"

// Operation tracks a CLI operation that may mutate the library.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"

	mu sync.Mutex
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
// Safe for concurrent use.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.mu.Lock()
		op.Status = "error"
		op.mu.Unlock()
	}
	return err
}
