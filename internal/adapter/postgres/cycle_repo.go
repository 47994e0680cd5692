package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cycletracker/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveDayRecord upserts the record for its date.
func (d *DB) SaveDayRecord(ctx context.Context, userID int64, rec domain.DayRecord) error {
	return saveDayRecord(ctx, d.sql, userID, rec)
}

// SaveDayRecordWithAnchor upserts the record and the anchor in one transaction.
func (d *DB) SaveDayRecordWithAnchor(ctx context.Context, userID int64, rec domain.DayRecord, anchor domain.Date) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveDayRecord(ctx, tx, userID, rec); err != nil {
		return err
	}
	if err := savePredictionAnchor(ctx, tx, userID, anchor); err != nil {
		return err
	}
	return tx.Commit()
}

func saveDayRecord(ctx context.Context, ex execer, userID int64, rec domain.DayRecord) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO cycle_days (user_id, day, is_period_day, symptoms, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, day) DO UPDATE
		 SET is_period_day = EXCLUDED.is_period_day, symptoms = EXCLUDED.symptoms, updated_at = EXCLUDED.updated_at`,
		userID, rec.Date.String(), rec.IsPeriodDay, pq.Array(rec.Symptoms.Strings()), time.Now().UTC(),
	)
	return err
}

// ListDayRecords returns every record of a user in date order.
func (d *DB) ListDayRecords(ctx context.Context, userID int64) ([]domain.DayRecord, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, is_period_day, symptoms FROM cycle_days WHERE user_id = $1 ORDER BY day",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.DayRecord
	for rows.Next() {
		var (
			day      time.Time
			rec      domain.DayRecord
			symptoms pq.StringArray
		)
		if err := rows.Scan(&day, &rec.IsPeriodDay, &symptoms); err != nil {
			return nil, err
		}
		rec.Date = domain.DateOf(day)
		for _, raw := range symptoms {
			s, ok := domain.ParseSymptom(raw)
			if !ok {
				return nil, fmt.Errorf("day %s: unknown symptom %q", rec.Date, raw)
			}
			rec.Symptoms = rec.Symptoms.Toggle(s)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SavePredictionAnchor stores the most recently marked period day.
func (d *DB) SavePredictionAnchor(ctx context.Context, userID int64, anchor domain.Date) error {
	return savePredictionAnchor(ctx, d.sql, userID, anchor)
}

func savePredictionAnchor(ctx context.Context, ex execer, userID int64, anchor domain.Date) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO cycle_predictions (user_id, anchor_day, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET anchor_day = EXCLUDED.anchor_day, updated_at = EXCLUDED.updated_at`,
		userID, anchor.String(), time.Now().UTC(),
	)
	return err
}

// GetPredictionAnchor returns the stored anchor, or nil if none was saved.
func (d *DB) GetPredictionAnchor(ctx context.Context, userID int64) (*domain.Date, error) {
	var day time.Time
	err := d.sql.QueryRowContext(ctx,
		"SELECT anchor_day FROM cycle_predictions WHERE user_id = $1",
		userID,
	).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	anchor := domain.DateOf(day)
	return &anchor, nil
}

// DeleteCycleData removes every record and the anchor of a user.
func (d *DB) DeleteCycleData(ctx context.Context, userID int64) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cycle_days WHERE user_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cycle_predictions WHERE user_id = $1", userID); err != nil {
		return err
	}
	return tx.Commit()
}
