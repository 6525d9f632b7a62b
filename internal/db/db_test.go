package db

import (
	"strings"
	"testing"

	"github.com/deskline/deskline/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			host:     "127.0.0.1",
			port:     3306,
			database: "deskline_acme",
			want:     "root@tcp(127.0.0.1:3306)/deskline_acme?parseTime=true",
		},
		{
			name:     "custom host and port",
			host:     "10.0.0.5",
			port:     3307,
			database: "deskline_globex",
			want:     "root@tcp(10.0.0.5:3307)/deskline_globex?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN("localhost", 3306, "test")
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to mention unsupported driver", err.Error())
	}
}

func TestConnectMemory_AndMigrate(t *testing.T) {
	gdb, err := ConnectMemory()
	if err != nil {
		t.Fatalf("ConnectMemory: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for model %T", m)
		}
	}
}

func TestConnect_SQLiteFile(t *testing.T) {
	path := t.TempDir() + "/deskline.db"
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect sqlite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}
