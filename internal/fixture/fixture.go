// Package fixture creates schema-compatible library stores from a
// declarative row description. Tests and the scenario harness use it; real
// stores come from the media service.
package fixture

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/watchgraft/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Library describes the rows of one fixture store.
// Zero-valued optional fields are written as NULL.
type Library struct {
	Accounts []ir.AccountRecord `yaml:"accounts"`
	Items    []Item             `yaml:"items"`
	Views    []View             `yaml:"views"`
	Settings []Setting          `yaml:"settings"`
}

// Item is a metadata_items row.
type Item struct {
	ID       int64       `yaml:"id"`
	ParentID int64       `yaml:"parent"`
	Type     ir.ItemType `yaml:"type"`
	GUID     string      `yaml:"guid"`
	Title    string      `yaml:"title"`
	Index    *int64      `yaml:"index"`
	AddedAt  *int64      `yaml:"added_at"`
}

// View is a metadata_item_views row.
type View struct {
	AccountID        int64       `yaml:"account"`
	GUID             string      `yaml:"guid"`
	Type             ir.ItemType `yaml:"type"`
	GrandparentTitle string      `yaml:"grandparent_title"`
	ParentTitle      string      `yaml:"parent_title"`
	ParentIndex      *int64      `yaml:"parent_index"`
	Index            *int64      `yaml:"index"`
	Title            string      `yaml:"title"`
	ViewedAt         *int64      `yaml:"viewed_at"`
	DeviceID         *int64      `yaml:"device"`
	ViewType         string      `yaml:"view_type"`
}

// Setting is a metadata_item_settings row.
type Setting struct {
	AccountID    int64  `yaml:"account"`
	GUID         string `yaml:"guid"`
	ViewCount    int64  `yaml:"view_count"`
	ViewOffset   int64  `yaml:"view_offset"`
	LastViewedAt *int64 `yaml:"last_viewed_at"`
}

// Write creates dir/name with the fixture schema and lib's rows and
// returns its path. An existing file is replaced.
func Write(dir, name string, lib Library) (path string, err error) {
	path = filepath.Join(dir, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return "", fmt.Errorf("create fixture schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback() // No-op if committed

	for _, a := range lib.Accounts {
		if _, err := tx.Exec(`INSERT INTO accounts (id, name) VALUES (?, ?)`, a.ID, a.Name); err != nil {
			return "", fmt.Errorf("insert account %d: %w", a.ID, err)
		}
	}
	for _, it := range lib.Items {
		_, err := tx.Exec(`
			INSERT INTO metadata_items (id, parent_id, metadata_type, guid, title, "index", added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, it.ID, nullID(it.ParentID), int64(it.Type), nullString(it.GUID), nullString(it.Title), it.Index, it.AddedAt)
		if err != nil {
			return "", fmt.Errorf("insert item %d: %w", it.ID, err)
		}
	}
	for _, v := range lib.Views {
		_, err := tx.Exec(`
			INSERT INTO metadata_item_views
			(account_id, guid, metadata_type, grandparent_title, parent_title, parent_index, "index", title, viewed_at, device_id, view_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, v.AccountID, nullString(v.GUID), int64(v.Type), nullString(v.GrandparentTitle), nullString(v.ParentTitle),
			v.ParentIndex, v.Index, nullString(v.Title), v.ViewedAt, v.DeviceID, nullString(v.ViewType))
		if err != nil {
			return "", fmt.Errorf("insert view for %s: %w", v.GUID, err)
		}
	}
	for _, s := range lib.Settings {
		_, err := tx.Exec(`
			INSERT INTO metadata_item_settings (account_id, guid, view_count, view_offset, last_viewed_at)
			VALUES (?, ?, ?, ?, ?)
		`, s.AccountID, s.GUID, s.ViewCount, s.ViewOffset, s.LastViewedAt)
		if err != nil {
			return "", fmt.Errorf("insert setting for %s: %w", s.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return path, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
