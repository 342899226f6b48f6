package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

func newBufferedQueryLogger(slow time.Duration) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: &buf, Format: logger.FormatJSON})
	return newQueryLogger(logg, slow), &buf
}

func statement() (string, int64) {
	return `UPDATE "products" SET "stock"=stock - 2 WHERE id = 'p-1'`, 1
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Second)
	q.Trace(context.Background(), time.Now(), statement, errors.New("deadlock detected"))
	require.Contains(t, buf.String(), "query failed")
	require.Contains(t, buf.String(), "deadlock detected")
	require.Contains(t, buf.String(), `"rows":1`)
}

func TestQueryLoggerIgnoresNotFoundAndFastQueries(t *testing.T) {
	q, buf := newBufferedQueryLogger(time.Second)
	q.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)
	q.Trace(context.Background(), time.Now(), statement, nil)
	require.Empty(t, buf.String())
}

func TestQueryLoggerFlagsSlowQueries(t *testing.T) {
	q, buf := newBufferedQueryLogger(10 * time.Millisecond)
	q.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	require.Contains(t, buf.String(), "slow query")
	require.Contains(t, buf.String(), "products")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	q, buf := newBufferedQueryLogger(10 * time.Millisecond)
	silent := q.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), statement, errors.New("boom"))
	require.Empty(t, buf.String())
	require.Equal(t, gormlogger.Warn, q.level, "LogMode must not mutate the receiver")
}
