package migration

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billflow/internal/config"
	projectiondomain "github.com/smallbiznis/billflow/internal/projection/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestApplySQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, Apply(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
	for _, table := range []string{"bill_events", "event_checkpoints", "bill_views", "bill_files"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	// idempotent
	require.NoError(t, Apply(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestMoneyColumnsMatchAmountRule(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000002_bill_views.up.sql")
	require.NoError(t, err)
	body := strings.ToLower(string(raw))

	want := projectiondomain.MoneyColumnType
	for _, column := range []string{"total", "extracted_total"} {
		assert.Regexp(t, `(?m)^\s*`+column+`\s+`+regexp.QuoteMeta(want), body, column)
	}
}

func TestSQLiteStoresAmountsAsText(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	columns, err := conn.Migrator().ColumnTypes(&projectiondomain.BillView{})
	require.NoError(t, err)
	types := map[string]string{}
	for _, c := range columns {
		types[c.Name()] = strings.ToLower(c.DatabaseTypeName())
	}
	assert.Equal(t, "text", types["total"])
	assert.Equal(t, "text", types["extracted_total"])
}
