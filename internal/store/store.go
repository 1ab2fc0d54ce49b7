// Package store keeps the history of training runs in a local SQLite file.
package store

import (
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DirName      = ".sifsim"
	DataFileName = "runs.db"

	StatusRunning  = "running"
	StatusDone     = "done"
	StatusFailed   = "failed"
	timeFormat     = time.RFC3339
	defaultListCap = 20
)

var (
	//go:embed sql/*
	f embed.FS

	ErrNotInitialized = errors.New("database not initialized")
)

// DefaultPath returns the run history location under the user home dir.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "error getting home dir")
	}
	return filepath.Join(home, DirName, DataFileName), nil
}

// Init creates the database file and its schema when missing.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if err := os.MkdirAll(filepath.Dir(dbFilePath), 0o700); err != nil {
		return errors.Wrapf(err, "error creating dir for %s", dbFilePath)
	}

	db, err := Open(dbFilePath)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Debug("ensuring db schema...")
	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return errors.Wrap(err, "failed to read the schema creation file")
	}
	if _, err := db.Exec(string(b)); err != nil {
		return errors.Wrapf(err, "failed to create database schema in: %s", dbFilePath)
	}
	return nil
}

// Open returns a handle to the database at path.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}
	return conn, nil
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}
