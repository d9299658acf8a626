package wadlib

import (
	"fmt"

	"wadlib/internal/model"
)

// History returns the most recent operations, ordered newest first.
func (s *Service) History(limit int) ([]*model.Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Transfers returns every recorded install attempt for slug.
func (s *Service) Transfers(slug string) ([]*model.TransferRecord, error) {
	ts, err := s.database.ListTransfers(slug)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	return ts, nil
}
