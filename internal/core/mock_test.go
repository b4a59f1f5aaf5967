package core

import (
	"context"
	"errors"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/store"
)

// FailingStore rejects candidate inserts for which FailFor returns true.
type FailingStore struct {
	*store.MemoryStore
	FailFor func(c *model.Candidate) bool
}

func (f *FailingStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	if f.FailFor == nil || f.FailFor(c) {
		return errors.New("disk full")
	}
	return f.MemoryStore.CreateCandidate(ctx, c)
}
