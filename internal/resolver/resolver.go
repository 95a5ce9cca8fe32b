// Package resolver maps inbound message text to a sequence trigger using a
// three-tier precedence: dynamic rule table, then the compiled-in alias
// table, then the configured default.
package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/expertec/vev-crm-sub000/internal/repo"
)

type Source string

const (
	SourceDynamic Source = "dynamic"
	SourceAlias   Source = "alias"
	SourceDefault Source = "default"
)

// Resolution is the outcome of resolving one inbound message. Only dynamic
// and alias sourced resolutions are strong enough to re-enroll a contact
// that is already in a funnel.
type Resolution struct {
	Trigger        string
	CancelTriggers []string
	Source         Source
}

// Strong reports whether the resolution came from an explicit hashtag match
// rather than the default fallback.
func (r Resolution) Strong() bool {
	return r.Source != SourceDefault
}

// Tables holds the static alias and cancel catalogs. They are built once at
// startup and never mutated afterwards.
type Tables struct {
	// Aliases maps a normalized hashtag (without '#') to a trigger name.
	Aliases map[string]string
	// Cancels maps a trigger to the companion triggers an enrollment into it
	// should cancel.
	Cancels map[string][]string
}

type Resolver struct {
	rules  repo.RuleRepository
	tables Tables
}

func New(rules repo.RuleRepository, tables Tables) *Resolver {
	return &Resolver{rules: rules, tables: tables}
}

var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the normalized (lowercased, deduplicated) hashtag
// tokens of the text, in order of first appearance.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Resolve maps messageText to a trigger. A dynamic rule outranks a static
// alias, which outranks defaultTrigger. A storage failure while reading the
// dynamic table is surfaced; the caller decides whether to fall back.
func (r *Resolver) Resolve(ctx context.Context, messageText, defaultTrigger string) (Resolution, error) {
	tags := ExtractHashtags(messageText)
	if len(tags) == 0 {
		return Resolution{Trigger: defaultTrigger, Source: SourceDefault}, nil
	}

	if r.rules != nil {
		rule, err := r.rules.FindByTags(ctx, tags)
		if err != nil {
			return Resolution{}, err
		}
		if rule != nil {
			return Resolution{
				Trigger:        rule.Trigger,
				CancelTriggers: rule.CancelTriggers,
				Source:         SourceDynamic,
			}, nil
		}
	}

	for _, tag := range tags {
		if trigger, ok := r.tables.Aliases[tag]; ok {
			return Resolution{
				Trigger:        trigger,
				CancelTriggers: r.tables.Cancels[trigger],
				Source:         SourceAlias,
			}, nil
		}
	}

	return Resolution{Trigger: defaultTrigger, Source: SourceDefault}, nil
}
