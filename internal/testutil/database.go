package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/db"
)

const defaultTestDSN = "host=localhost port=5432 user=localadmin password=localadmin dbname=reminders_test sslmode=disable"

// SetupTestDB connects to the test database named by TEST_DATABASE_DSN (or
// the local default) and applies the service schema. Tests are skipped when
// the database is unreachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	connStr := os.Getenv("TEST_DATABASE_DSN")
	if connStr == "" {
		connStr = defaultTestDSN
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Skipf("Test database unavailable: %v", err)
	}

	if err := db.EnsureSchema(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// CleanupTestDB empties the reminder tables.
func CleanupTestDB(t *testing.T, conn *sql.DB) {
	t.Helper()

	if _, err := conn.Exec("TRUNCATE TABLE reminder_batch_receipts, delegated_credentials"); err != nil {
		t.Logf("Warning: Failed to clean up reminder tables: %v", err)
	}
}

// SeedCredential stores a delegated refresh token for userID.
func SeedCredential(t *testing.T, conn *sql.DB, userID, refreshToken string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO delegated_credentials (user_id, refresh_token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET refresh_token = EXCLUDED.refresh_token, updated_at = NOW()
	`, userID, refreshToken)
	if err != nil {
		t.Fatalf("Failed to seed credential: %v", err)
	}
}
