package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandwichops/relay/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "relay",
			want:     "root@tcp(127.0.0.1:3306)/relay?parseTime=true&charset=utf8mb4",
		},
		{
			name:     "with password",
			user:     "relay",
			password: "hunter2",
			host:     "10.0.0.5",
			port:     3307,
			database: "relay_prod",
			want:     "relay:hunter2@tcp(10.0.0.5:3307)/relay_prod?parseTime=true&charset=utf8mb4",
		},
		{
			name:     "production host",
			user:     "root",
			host:     "db.vpc.internal",
			port:     3306,
			database: "relay",
			want:     "root@tcp(db.vpc.internal:3306)/relay?parseTime=true&charset=utf8mb4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.password, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN("root", "", "localhost", 3306, "test")
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestConnect_SQLite(t *testing.T) {
	cfg := config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "relay.db"),
	}
	gdb, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	// Migration must be idempotent.
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("second auto-migrate: %v", err)
	}
}

func TestReset_RecreatesTables(t *testing.T) {
	cfg := config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "relay.db"),
	}
	gdb, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	if err := Reset(gdb); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T missing after reset", m)
		}
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 8 {
		t.Errorf("len(AllModels()) = %d, want 8", got)
	}
}
