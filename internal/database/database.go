// Package database stores the moderation audit log in sqlite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"wechat/internal/constants"
	"wechat/internal/errors"
	"wechat/internal/migrations"
	"wechat/internal/models"
	"wechat/internal/retry"
	"wechat/internal/security"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const defaultListLimit = 100

type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, constants.DefaultFilePermissions) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeWith := func(err error, what string) error {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("%s: %w (close error: %v)", what, err, closeErr)
		}
		return fmt.Errorf("%s: %w", what, err)
	}

	if err := db.Ping(); err != nil {
		return nil, closeWith(err, "failed to ping database")
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		return nil, closeWith(err, "failed to read schema")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, closeWith(err, "failed to initialize schema")
	}

	enc, err := NewEncryptor()
	if err != nil {
		return nil, closeWith(err, "failed to initialize encryptor")
	}

	return &Database{db: db, encryptor: enc, now: time.Now}, nil
}

// Open creates the database, retrying transient sqlite failures with
// exponential backoff.
func Open(ctx context.Context, dbPath string, cfg models.RetryConfig, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	b := retry.NewBackoff(retry.FromConfig(cfg))
	b.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Retrying database open")
	}

	var d *Database
	err := retryWith(ctx, b, func() error {
		var openErr error
		d, openErr = New(dbPath)
		return openErr
	}, "open database")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to open audit log").
			WithContext("path", dbPath).
			WithUserMessage("Database unavailable")
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// RecordFlag appends a moderation event. ID and CreatedAt are filled in.
func (d *Database) RecordFlag(ctx context.Context, event *models.FlagEvent) error {
	if event == nil || event.Term == "" {
		return errors.NewValidationError("term", "", "flag event needs a term")
	}

	encryptedContact, err := d.encryptor.Encrypt(event.ContactID)
	if err != nil {
		return errors.NewDatabaseError("encrypt contact", err)
	}
	lookup := d.encryptor.LookupKey(event.ContactID)

	if event.CreatedAt.IsZero() {
		event.CreatedAt = d.now()
	}
	createdAt := event.CreatedAt.UTC()

	err = retryableDBOperation(ctx, func() error {
		res, execErr := d.db.ExecContext(ctx, InsertFlagEventQuery,
			encryptedContact,
			lookup,
			event.Term,
			event.Count,
			event.Warned,
			createdAt,
		)
		if execErr != nil {
			return execErr
		}
		event.ID, execErr = res.LastInsertId()
		return execErr
	}, "record flag")
	if err != nil {
		return errors.NewDatabaseError("record flag", err)
	}
	return nil
}

// RecentFlags returns the newest events first.
func (d *Database) RecentFlags(ctx context.Context, limit int) ([]models.FlagEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := d.db.QueryContext(ctx, SelectRecentFlagEventsQuery, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list flags", err)
	}
	return d.scanFlags(rows)
}

// FlagsForContact returns the newest events recorded for one contact.
func (d *Database) FlagsForContact(ctx context.Context, contactID string, limit int) ([]models.FlagEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := d.db.QueryContext(ctx, SelectFlagEventsByContactQuery, d.encryptor.LookupKey(contactID), limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list contact flags", err)
	}
	return d.scanFlags(rows)
}

func (d *Database) scanFlags(rows *sql.Rows) ([]models.FlagEvent, error) {
	defer rows.Close()

	events := []models.FlagEvent{}
	for rows.Next() {
		var event models.FlagEvent
		var encryptedContact string
		if err := rows.Scan(&event.ID, &encryptedContact, &event.Term, &event.Count, &event.Warned, &event.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("scan flag", err)
		}
		contact, err := d.encryptor.Decrypt(encryptedContact)
		if err != nil {
			return nil, errors.NewDatabaseError("decrypt contact", err)
		}
		event.ContactID = contact
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate flags", err)
	}
	return events, nil
}

// TermTotals returns how many events were recorded per term.
func (d *Database) TermTotals(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, SelectTermTotalsQuery)
	if err != nil {
		return nil, errors.NewDatabaseError("term totals", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var term string
		var count int
		if err := rows.Scan(&term, &count); err != nil {
			return nil, errors.NewDatabaseError("scan term totals", err)
		}
		totals[term] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate term totals", err)
	}
	return totals, nil
}

// CleanupOldRecords deletes events older than retentionDays and returns how
// many were removed.
func (d *Database) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	cutoff := d.now().UTC().AddDate(0, 0, -retentionDays)

	var removed int64
	err := retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, DeleteOldFlagEventsQuery, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	}, "cleanup flags")
	if err != nil {
		return 0, errors.NewDatabaseError("cleanup flags", err)
	}
	return removed, nil
}
