// Package mds implements the Thorium metadata store (C1): the
// wide-column-shaped schema of §3/§6, backed by PostgreSQL and accessed
// through hand-written pgx SQL rather than an ORM, so partition-key
// columns and clustering indexes stay explicit in every query.
package mds

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thorium-platform/thorium/errs"
)

// pool wraps a pgxpool.Pool with the connection-lifecycle handling the
// teacher's direct-pgx client used in place of an ORM for workloads that
// need explicit partition/clustering control.
type pool struct {
	*pgxpool.Pool
}

func newPool(ctx context.Context, connString string) (*pool, error) {
	p, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "create metadata store pool", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, errs.Wrap(errs.Unavailable, "ping metadata store", err)
	}
	return &pool{Pool: p}, nil
}
