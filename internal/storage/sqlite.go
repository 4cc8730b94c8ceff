package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

// Fixed-width UTC layout so the TEXT datetime column sorts
// lexicographically in timestamp order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:gasguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			user_email TEXT NOT NULL,
			mobile_number TEXT,
			level TEXT NOT NULL,
			ppm REAL NOT NULL,
			datetime TEXT NOT NULL,
			color TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_datetime ON alerts(datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_email)`,
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			hardware_id TEXT,
			mobile_number TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) AppendAlert(ctx context.Context, record model.AlertRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, user_email, mobile_number, level, ppm, datetime, color)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserEmail,
		record.MobileNumber,
		string(record.Level),
		record.PPM,
		record.Datetime.UTC().Format(sqliteTimeLayout),
		record.Color,
	)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *sqliteStore) ListAlerts(ctx context.Context, q AlertQuery) ([]model.AlertRecord, error) {
	query := `SELECT id, user_email, mobile_number, level, ppm, datetime, color FROM alerts`
	var conds []string
	var args []any
	if q.UserEmail != "" {
		conds = append(conds, "user_email = ?")
		args = append(args, q.UserEmail)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "datetime >= ?")
		args = append(args, q.Since.UTC().Format(sqliteTimeLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY datetime DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AlertRecord, 0)
	for rows.Next() {
		var rec model.AlertRecord
		var level, ts string
		var mobile sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserEmail, &mobile, &level, &rec.PPM, &ts, &rec.Color); err != nil {
			return nil, err
		}
		rec.MobileNumber = mobile.String
		rec.Level = model.AlertLevel(level)
		parsed, err := time.Parse(sqliteTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("alert %s: bad datetime %q: %w", rec.ID, ts, err)
		}
		rec.Datetime = parsed
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetProfile(ctx context.Context, identity string) (model.HardwareBinding, error) {
	var b model.HardwareBinding
	var hardware, mobile sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, hardware_id, mobile_number, is_admin, is_active FROM users WHERE email = ?`,
		identity,
	).Scan(&b.Identity, &hardware, &mobile, &b.IsAdmin, &b.IsActive)
	if err == sql.ErrNoRows {
		return model.HardwareBinding{}, ErrNotFound
	}
	if err != nil {
		return model.HardwareBinding{}, err
	}
	b.HardwareID = hardware.String
	b.MobileNumber = mobile.String
	return b, nil
}

func (s *sqliteStore) SaveProfile(ctx context.Context, binding model.HardwareBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, hardware_id, mobile_number, is_admin, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			hardware_id = excluded.hardware_id,
			mobile_number = excluded.mobile_number,
			is_admin = excluded.is_admin,
			is_active = excluded.is_active`,
		binding.Identity,
		binding.HardwareID,
		binding.MobileNumber,
		binding.IsAdmin,
		binding.IsActive,
	)
	return err
}

func (s *sqliteStore) CountProfiles(ctx context.Context) (int, int, error) {
	var total, active int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&active); err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
