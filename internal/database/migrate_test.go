package database

import (
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// 埋め込みマイグレーションがソースとして読み込めることを検証
func TestMigrationsFS_LoadsAsSource(t *testing.T) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		t.Fatalf("expected first migration, got %v", err)
	}
	if version != 1 {
		t.Errorf("first version = %d, want 1", version)
	}
}

// 初期マイグレーションに3つのテーブルが含まれることを検証
func TestMigrations_InitCreatesTables(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read init migration: %v", err)
	}

	sql := string(data)
	for _, table := range []string{"users", "borrowers", "loans"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Errorf("init migration should create table %q", table)
		}
	}
}
