// Package repotest opens throwaway in-memory stores for tests.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/catalog_admin/internal/repo"
	pkgdb "github.com/Skotchmaster/catalog_admin/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Clock hands out strictly increasing timestamps so creation order is
// observable even when inserts land within the same wall-clock tick.
type Clock struct {
	mu  sync.Mutex
	cur time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{cur: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), pkgdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.NowFunc = NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).Now
	require.NoError(t, repo.Migrate(db))

	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return db
}
