// Package identity lets a scheduler worker run as a job's definer
// principal, the way MySQL's Event Scheduler runs each event as its
// DEFINER. It implements sched.IdentityAdapter over Postgres session
// variables: SET LOCAL ROLE/search_path scoped to one transaction.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/minisource/schedulerd/internal/sched"
	"gorm.io/gorm"
)

// Adapter issues and tears down definer impersonation via a short-lived
// transaction holding Postgres session-local settings.
type Adapter struct {
	db *gorm.DB
}

// NewAdapter creates a new identity adapter over db.
func NewAdapter(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

// handle is the concrete sched.IdentityHandle this adapter hands back.
type handle struct {
	tx *gorm.DB
}

// Assume begins a transaction scoped to principal/schema. If principal
// is empty, no impersonation is performed and a nil handle is returned
// (Release on a nil handle is a no-op).
func (a *Adapter) Assume(ctx context.Context, principal, schema string) (sched.IdentityHandle, error) {
	if principal == "" {
		return nil, nil
	}

	tx := a.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("identity: begin transaction: %w", tx.Error)
	}

	if err := tx.Exec(fmt.Sprintf("SET LOCAL ROLE %s", pgIdent(principal))).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("identity: set local role: %w", err)
	}

	if schema != "" {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL search_path TO %s", pgIdent(schema))).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("identity: set search_path: %w", err)
		}
	}

	return &handle{tx: tx}, nil
}

// Release ends the impersonation transaction. A job's payload never
// needs this transaction's writes to persist, so Release always rolls
// back rather than commits.
func (a *Adapter) Release(h sched.IdentityHandle) {
	concrete, ok := h.(*handle)
	if !ok || concrete == nil {
		return
	}
	concrete.tx.Rollback()
}

// pgIdent quotes an identifier for safe interpolation into SET
// statements, which Postgres does not allow as bind parameters.
func pgIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
