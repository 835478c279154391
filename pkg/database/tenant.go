package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTenantRLS executes fn inside a transaction scoped to one tenant.
// This is the isolation mechanism for RLS-based pooled multi-tenancy.
//
// Usage in repositories:
//
//	tenantID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
//	    return tx.GetContext(ctx, &item, "SELECT * FROM items WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction
//  2. Sets the transaction-local search_path
//  3. Sets app.current_tenant via set_config(..., true)
//  4. RLS policies filter rows: USING (tenant_id = current_setting('app.current_tenant')::uuid)
//  5. Commits, or rolls back everything fn wrote if it returns an error
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(*sqlx.Tx) error) error {
	if tenantID == "" {
		return fmt.Errorf("tenant RLS: empty tenant id")
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT set_config('search_path', $1, true)", db.SearchPath()); err != nil {
			return fmt.Errorf("failed to set search_path: %w", err)
		}

		// set_config is used instead of SET LOCAL so the tenant id can be bound as a parameter.
		if _, err := tx.ExecContext(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		return fn(tx)
	})
}

// SearchPath returns the schema search path applied inside tenant transactions.
func (db *DB) SearchPath() string {
	if db.searchPath == "" {
		return "public"
	}
	return db.searchPath
}
