package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/gasguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			user_email TEXT NOT NULL,
			mobile_number TEXT,
			level TEXT NOT NULL,
			ppm DOUBLE PRECISION NOT NULL,
			datetime TIMESTAMPTZ NOT NULL,
			color TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_datetime ON alerts(datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_email)`,
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			hardware_id TEXT,
			mobile_number TEXT,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) AppendAlert(ctx context.Context, record model.AlertRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, user_email, mobile_number, level, ppm, datetime, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		record.UserEmail,
		record.MobileNumber,
		string(record.Level),
		record.PPM,
		record.Datetime.UTC(),
		record.Color,
	)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *postgresStore) ListAlerts(ctx context.Context, q AlertQuery) ([]model.AlertRecord, error) {
	query := `SELECT id, user_email, mobile_number, level, ppm, datetime, color FROM alerts`
	var conds []string
	var args []any
	if q.UserEmail != "" {
		args = append(args, q.UserEmail)
		conds = append(conds, "user_email = $1")
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		conds = append(conds, "datetime >= $"+itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY datetime DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + itoa(len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AlertRecord, 0)
	for rows.Next() {
		var rec model.AlertRecord
		var level string
		var mobile sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserEmail, &mobile, &level, &rec.PPM, &rec.Datetime, &rec.Color); err != nil {
			return nil, err
		}
		rec.MobileNumber = mobile.String
		rec.Level = model.AlertLevel(level)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *postgresStore) GetProfile(ctx context.Context, identity string) (model.HardwareBinding, error) {
	var b model.HardwareBinding
	var hardware, mobile sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, hardware_id, mobile_number, is_admin, is_active FROM users WHERE email = $1`,
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

func (s *postgresStore) SaveProfile(ctx context.Context, binding model.HardwareBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, hardware_id, mobile_number, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(email) DO UPDATE SET
			hardware_id = EXCLUDED.hardware_id,
			mobile_number = EXCLUDED.mobile_number,
			is_admin = EXCLUDED.is_admin,
			is_active = EXCLUDED.is_active`,
		binding.Identity,
		binding.HardwareID,
		binding.MobileNumber,
		binding.IsAdmin,
		binding.IsActive,
	)
	return err
}

func (s *postgresStore) CountProfiles(ctx context.Context) (int, int, error) {
	var total, active int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active`).Scan(&active); err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
