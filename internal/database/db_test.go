package database

import (
	"path/filepath"
	"testing"
)

// TestOpen_ReturnsDBForAnyURL はsql.Openが接続を試行しないことを前提に、
// URLフォーマットに関わらずDBオブジェクトが返ることを検証する。
func TestOpen_ReturnsDBForAnyURL(t *testing.T) {
	db, err := Open("postgres://invalid")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	if db == nil {
		t.Fatal("expected non-nil db")
	}
	defer db.Close()
}

func TestOpenSQLite_CreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "riflelog.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'blobs'").Scan(&name)
	if err != nil {
		t.Fatalf("blobs テーブルが作成されていません: %v", err)
	}
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riflelog.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if _, err := db.Exec("INSERT INTO blobs (key, value) VALUES ('k', 'v')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	db.Close()

	// 既存ファイルを開き直してもデータが残ること
	db, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite() error = %v", err)
	}
	defer db.Close()

	var value string
	if err := db.QueryRow("SELECT value FROM blobs WHERE key = 'k'").Scan(&value); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if value != "v" {
		t.Errorf("value = %q, want %q", value, "v")
	}
}
