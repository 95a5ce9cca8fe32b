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

type PostgresContactRepo struct {
	db *sql.DB
}

func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

func (r *PostgresContactRepo) Get(ctx context.Context, id string) (*model.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phone, display_name, status, tags, has_active_sequences,
		       seq_paused, last_message_at, attributes
		FROM contacts
		WHERE id = $1
	`, id)

	var c model.Contact
	var phone, displayName, status sql.NullString
	var tags, attributes []byte
	var lastMessageAt sql.NullTime

	if err := row.Scan(
		&c.ID,
		&phone,
		&displayName,
		&status,
		&tags,
		&c.HasActiveSequences,
		&c.SeqPaused,
		&lastMessageAt,
		&attributes,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	c.Phone = phone.String
	c.DisplayName = displayName.String
	c.Status = status.String
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		c.LastMessageAt = &t
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for contact %s: %w", c.ID, err)
		}
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &c.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes for contact %s: %w", c.ID, err)
		}
	}

	return &c, nil
}

func (r *PostgresContactRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET last_message_at = $2 WHERE id = $1
	`, id, at)
	return err
}
