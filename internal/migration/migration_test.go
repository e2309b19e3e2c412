package migration

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunMigrationsIsIdempotentOnSQLite(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))

	for _, table := range []string{"plans", "subscriptions", "subscription_usage_keys"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO plans (id, code, name, tier, currency, max_repositories, max_contributors, max_commits_per_contributor, created_at, updated_at)
		 VALUES (1, 'free', 'Free', 'free', 'USD', 1, 2, 10, ?, ?)`, now, now).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO subscriptions (id, subscriber_id, plan_id, start_date, end_date, renewal_date, created_at, updated_at)
		 VALUES (1, 'user-1', 1, ?, ?, ?, ?, ?)`, now, now, now, now, now).Error)

	var commits int
	require.NoError(t, db.Raw(`SELECT total_commits FROM subscriptions WHERE id = 1`).Scan(&commits).Error)
	assert.Zero(t, commits)

	require.NoError(t, db.Exec(
		`INSERT INTO subscription_usage_keys (subscription_id, dimension, usage_key, created_at) VALUES (1, 'contributor', 'alice', ?)`, now).Error)
	assert.Error(t, db.Exec(
		`INSERT INTO subscription_usage_keys (subscription_id, dimension, usage_key, created_at) VALUES (1, 'contributor', 'alice', ?)`, now).Error)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\nCREATE INDEX i ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestEveryDialectShipsTheSameVersions(t *testing.T) {
	for _, dialect := range []string{"postgres", "mysql", "sqlite"} {
		entries, err := embeddedMigrations.ReadDir(migrationsDir + "/" + dialect)
		require.NoError(t, err)
		var ups []string
		for _, entry := range entries {
			if len(entry.Name()) > 7 && entry.Name()[len(entry.Name())-7:] == ".up.sql" {
				ups = append(ups, entry.Name())
			}
		}
		assert.Equal(t, []string{"000001_init.up.sql"}, ups, dialect)
	}
}
