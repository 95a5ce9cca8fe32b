package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

type PostgresSequenceRepo struct {
	db *sql.DB
}

func NewPostgresSequenceRepo(db *sql.DB) *PostgresSequenceRepo {
	return &PostgresSequenceRepo{db: db}
}

func (r *PostgresSequenceRepo) GetByTrigger(ctx context.Context, trigger string) (*model.SequenceDefinition, error) {
	// Direct lookup by id wins; trigger-field lookup is the fallback.
	row := r.db.QueryRowContext(ctx, `
		SELECT id, trigger, active, messages
		FROM sequences
		WHERE id = $1
	`, trigger)

	def, err := scanSequence(row)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	row = r.db.QueryRowContext(ctx, `
		SELECT id, trigger, active, messages
		FROM sequences
		WHERE trigger = $1
		LIMIT 1
	`, trigger)

	def, err = scanSequence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSequenceNotFound
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

func scanSequence(row *sql.Row) (*model.SequenceDefinition, error) {
	var def model.SequenceDefinition
	var messages []byte

	if err := row.Scan(&def.ID, &def.Trigger, &def.Active, &messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &def.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages for sequence %s: %w", def.ID, err)
	}
	return &def, nil
}
