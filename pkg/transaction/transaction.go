package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	pkgerrors "github.com/gantryio/gantry/pkg/errors"
)

// State tracks the lifecycle of a request transaction.
type State int

const (
	// StateOpen means the transaction accepts staged changes
	StateOpen State = iota
	// StateCommitting means a commit is in flight
	StateCommitting
	// StateRollingBack means a rollback is in flight
	StateRollingBack
	// StateClosed means the transaction has been resolved
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitting:
		return "committing"
	case StateRollingBack:
		return "rolling_back"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Context owns one database transaction for the duration of a request.
//
// It moves through open -> (committing | rolling_back) -> closed and can be
// resolved exactly once. Repositories and services stage changes through
// Session; only the transport boundary calls Commit or Rollback. Any use
// after resolution yields an invalid state error instead of silently
// reopening work.
type Context struct {
	mu    sync.Mutex
	state State
	tx    *gorm.DB
}

// Begin opens a transaction on db bound to ctx and returns it in the open
// state.
func Begin(ctx context.Context, db *gorm.DB) (*Context, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeInternal, "begin transaction", tx.Error)
	}
	return &Context{state: StateOpen, tx: tx}, nil
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the transactional handle while the transaction is open.
func (c *Context) Session() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, pkgerrors.InvalidState(fmt.Sprintf("transaction is %s", c.state))
	}
	return c.tx, nil
}

// Commit resolves the transaction by committing staged changes.
//
// When the commit itself fails, the transaction is rolled back before the
// error is returned, so the context still reaches closed through a single
// resolution and holds no open transaction afterwards.
func (c *Context) Commit() error {
	if err := c.transition(StateCommitting); err != nil {
		return err
	}

	if err := c.tx.Commit().Error; err != nil {
		if rbErr := c.tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("%w (rollback after failed commit: %v)", err, rbErr)
		}
		c.close()
		return pkgerrors.Wrap(pkgerrors.ErrorTypeInternal, "commit transaction", err)
	}

	c.close()
	return nil
}

// Rollback resolves the transaction by discarding staged changes.
func (c *Context) Rollback() error {
	if err := c.transition(StateRollingBack); err != nil {
		return err
	}

	err := c.tx.Rollback().Error
	c.close()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return pkgerrors.Wrap(pkgerrors.ErrorTypeInternal, "rollback transaction", err)
	}
	return nil
}

// transition moves open -> next, failing with an invalid state error when
// the transaction has already left the open state.
func (c *Context) transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return pkgerrors.InvalidState(fmt.Sprintf("transaction already %s", c.state))
	}
	c.state = next
	return nil
}

func (c *Context) close() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}
