package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

type PostgresJobRepo struct {
	db *sql.DB
}

func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

func (r *PostgresJobRepo) ReplaceCohort(ctx context.Context, contactID, trigger string, jobs []model.ScheduledJob) error {
	if contactID == "" || trigger == "" {
		return errors.New("contactID and trigger must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM scheduled_jobs
		WHERE contact_id = $1 AND trigger = $2 AND status = 'pending'
	`, contactID, trigger); err != nil {
		return err
	}

	for _, j := range jobs {
		payload, err := json.Marshal(j.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for step %d: %w", j.StepIndex, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_jobs
				(id, contact_id, trigger, step_index, payload, due_at, status, shard, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, j.ID, j.ContactID, j.Trigger, j.StepIndex, payload, j.DueAt, string(j.Status), j.Shard, j.CreatedAt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts SET has_active_sequences = TRUE WHERE id = $1
	`, contactID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresJobRepo) DuePending(ctx context.Context, now time.Time, limit, shard int) ([]model.ScheduledJob, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	query := `
		SELECT id, contact_id, trigger, step_index, payload, due_at, status, shard, created_at
		FROM scheduled_jobs
		WHERE status = 'pending' AND due_at <= $1
	`
	args := []any{now}
	if shard >= 0 {
		query += ` AND shard = $2 ORDER BY due_at ASC LIMIT $3`
		args = append(args, shard, limit)
	} else {
		query += ` ORDER BY due_at ASC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepo) MarkSent(ctx context.Context, id string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET status = 'sent', processed_at = $2
		WHERE id = $1
	`, id, processedAt)
	return err
}

func (r *PostgresJobRepo) MarkError(ctx context.Context, id string, processedAt time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET status = 'error', processed_at = $2, last_error = $3
		WHERE id = $1
	`, id, processedAt, reason)
	return err
}

func (r *PostgresJobRepo) DeletePending(ctx context.Context, contactID string, triggers []string) (int64, error) {
	if contactID == "" || len(triggers) == 0 {
		return 0, nil
	}

	triggerSet, err := json.Marshal(triggers)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM scheduled_jobs
		WHERE contact_id = $1
		  AND status = 'pending'
		  AND trigger IN (SELECT jsonb_array_elements_text($2::jsonb))
	`, contactID, triggerSet)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresJobRepo) DeleteAllPending(ctx context.Context, contactID string) (int64, error) {
	if contactID == "" {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM scheduled_jobs
		WHERE contact_id = $1 AND status = 'pending'
	`, contactID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresJobRepo) ListByContact(ctx context.Context, contactID string, status model.JobStatus, limit int) ([]model.ScheduledJob, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, contact_id, trigger, step_index, payload, due_at, status, shard, created_at, processed_at, last_error
		FROM scheduled_jobs
		WHERE contact_id = $1
	`
	args := []any{contactID}
	if status != "" {
		query += ` AND status = $2 ORDER BY created_at DESC, step_index ASC LIMIT $3`
		args = append(args, string(status), limit)
	} else {
		query += ` ORDER BY created_at DESC, step_index ASC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		var j model.ScheduledJob
		var payload []byte
		var status string
		var processedAt sql.NullTime
		var lastErr sql.NullString

		if err := rows.Scan(
			&j.ID,
			&j.ContactID,
			&j.Trigger,
			&j.StepIndex,
			&payload,
			&j.DueAt,
			&status,
			&j.Shard,
			&j.CreatedAt,
			&processedAt,
			&lastErr,
		); err != nil {
			return nil, err
		}

		j.Status = model.JobStatus(status)
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for job %s: %w", j.ID, err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			j.ProcessedAt = &t
		}
		if lastErr.Valid {
			s := lastErr.String
			j.LastError = &s
		}

		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(rows *sql.Rows) (model.ScheduledJob, error) {
	var j model.ScheduledJob
	var payload []byte
	var status string

	if err := rows.Scan(
		&j.ID,
		&j.ContactID,
		&j.Trigger,
		&j.StepIndex,
		&payload,
		&j.DueAt,
		&status,
		&j.Shard,
		&j.CreatedAt,
	); err != nil {
		return model.ScheduledJob{}, err
	}

	j.Status = model.JobStatus(status)
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return model.ScheduledJob{}, fmt.Errorf("unmarshal payload for job %s: %w", j.ID, err)
	}
	return j, nil
}
