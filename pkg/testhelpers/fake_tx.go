package testhelpers

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// FakeTx satisfies pgx.Tx for unit tests whose repositories are mocked.
// Only Commit and Rollback are implemented; any other method panics.
type FakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	Committed  bool
	RolledBack bool
}

func (t *FakeTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Committed = true
	return nil
}

func (t *FakeTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// FakeTxManager hands out FakeTx values and remembers them for assertions.
type FakeTxManager struct {
	mu  sync.Mutex
	Txs []*FakeTx
}

func (m *FakeTxManager) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &FakeTx{}
	m.Txs = append(m.Txs, tx)
	return tx, nil
}

// Last returns the most recently started transaction.
func (m *FakeTxManager) Last() *FakeTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Txs) == 0 {
		return nil
	}
	return m.Txs[len(m.Txs)-1]
}
