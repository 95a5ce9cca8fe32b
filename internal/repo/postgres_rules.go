package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

type PostgresRuleRepo struct {
	db *sql.DB
}

func NewPostgresRuleRepo(db *sql.DB) *PostgresRuleRepo {
	return &PostgresRuleRepo{db: db}
}

// FindByTags scans the rule table for the tags in order and returns the first
// usable rule. Rows with an empty tag or trigger are operator input errors
// and are treated as non-matches rather than failures.
func (r *PostgresRuleRepo) FindByTags(ctx context.Context, tags []string) (*model.TriggerRule, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	tagSet, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT tag, trigger, cancel_triggers
		FROM trigger_rules
		WHERE tag IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, tagSet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTag := make(map[string]*model.TriggerRule)
	for rows.Next() {
		var rule model.TriggerRule
		var tag, trigger sql.NullString
		var cancels []byte

		if err := rows.Scan(&tag, &trigger, &cancels); err != nil {
			return nil, err
		}
		if tag.String == "" || trigger.String == "" {
			continue
		}

		rule.Tag = tag.String
		rule.Trigger = trigger.String
		if len(cancels) > 0 {
			// Malformed cancel lists reduce the rule to a plain match.
			_ = json.Unmarshal(cancels, &rule.CancelTriggers)
		}

		if _, seen := byTag[rule.Tag]; !seen {
			byTag[rule.Tag] = &rule
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, tag := range tags {
		if rule, ok := byTag[tag]; ok {
			return rule, nil
		}
	}
	return nil, nil
}
