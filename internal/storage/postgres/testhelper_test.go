package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	tcommon "github.com/bobmcallan/folio/tests/common"
)

// testManager returns a Manager bound to a fresh schema in the shared container.
func testManager(t *testing.T) *Manager {
	t.Helper()

	pc := tcommon.StartPostgres(t)
	ctx := context.Background()

	admin, err := sql.Open("postgres", pc.DSN())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer admin.Close()

	sanitized := strings.ToLower(strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	schemaName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schemaName); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	// lib/pq forwards unknown DSN parameters as session settings.
	mgr, err := NewManager(ctx, common.NewSilentLogger(), &common.PostgresConfig{
		DSN: pc.DSN() + "&search_path=" + schemaName,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	t.Cleanup(func() {
		mgr.Close()
	})
	return mgr
}
