// Package query wraps the mongo driver calls of the event store with
// metrics, slow query logging and an optional COLLSCAN guard.
package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

var (
	// ErrNotFound is mongo document not found error
	ErrNotFound = fmt.Errorf("document not found")

	// ErrCollScan is error for unindexed query
	ErrCollScan = fmt.Errorf("COLLSCAN is not allowed")
)

// UpsertOp replaces the document matched by Selector, or inserts it.
type UpsertOp struct {
	Selector interface{}
	Updater  interface{}
}

// Mongo abstract the mongo layer.
type Mongo interface {
	// FindOne decodes the first match into result, ErrNotFound if none
	FindOne(context ctx.Ctx, table domain.Table, query, result interface{}) error

	// Search sorts by `sort` ("seq" ascending, "-seq" descending), an empty
	// sort leaves the order to mongo
	Search(context ctx.Ctx, table domain.Table, offset, limit int, sort string, query, results interface{}) error

	// BulkUpsert runs the upserts unordered
	BulkUpsert(context ctx.Ctx, table domain.Table, ops []UpsertOp) (matchedCnt int64, modifiedCnt int64, err error)

	// EnsureIndexes creates the indexes if they do not exist yet
	EnsureIndexes(context ctx.Ctx, table domain.Table, models []mongo.IndexModel) error
}
