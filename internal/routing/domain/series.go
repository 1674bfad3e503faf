package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// Series is a recurrence definition that an external generator expands into
// future routes modelled on a template route.
type Series struct {
	id              uuid.UUID
	templateRouteID uuid.UUID
	pattern         string
	startsAt        time.Time
	rule            *rrule.RRule
	createdBy       uuid.UUID
	createdAt       time.Time
}

// NewSeries validates pattern as an RFC 5545 RRULE anchored at the template
// route's estimated start.
func NewSeries(template *Route, pattern string, createdBy uuid.UUID, at time.Time) (*Series, error) {
	if createdBy == uuid.Nil {
		return nil, ErrActorRequired
	}
	rule, normalized, err := parsePattern(pattern, template.EstimatedStart())
	if err != nil {
		return nil, err
	}
	return &Series{
		id:              uuid.New(),
		templateRouteID: template.ID(),
		pattern:         normalized,
		startsAt:        template.EstimatedStart(),
		rule:            rule,
		createdBy:       createdBy,
		createdAt:       at.UTC(),
	}, nil
}

// RehydrateSeries restores a series from storage. An unparsable stored pattern
// leaves the series without a preview rather than failing the load.
func RehydrateSeries(id, templateRouteID uuid.UUID, pattern string, startsAt time.Time, createdBy uuid.UUID, createdAt time.Time) *Series {
	rule, _, _ := parsePattern(pattern, startsAt)
	return &Series{
		id:              id,
		templateRouteID: templateRouteID,
		pattern:         pattern,
		startsAt:        startsAt,
		rule:            rule,
		createdBy:       createdBy,
		createdAt:       createdAt,
	}
}

func (s *Series) ID() uuid.UUID              { return s.id }
func (s *Series) TemplateRouteID() uuid.UUID { return s.templateRouteID }
func (s *Series) Pattern() string            { return s.pattern }
func (s *Series) StartsAt() time.Time        { return s.startsAt }
func (s *Series) CreatedBy() uuid.UUID       { return s.createdBy }
func (s *Series) CreatedAt() time.Time       { return s.createdAt }

// maxPreviewScan caps how many rule instances a preview walks.
const maxPreviewScan = 5000

// NextOccurrences returns up to n occurrences strictly after the given time.
func (s *Series) NextOccurrences(after time.Time, n int) []time.Time {
	if s.rule == nil || n <= 0 {
		return nil
	}
	var out []time.Time
	iter := s.rule.Iterator()
	for scanned := 0; len(out) < n && scanned < maxPreviewScan; scanned++ {
		t, ok := iter()
		if !ok {
			break
		}
		if t.After(after) {
			out = append(out, t)
		}
	}
	return out
}

// parsePattern anchors the rule at the template route's start. A pattern may
// not move that anchor with its own DTSTART, and routes recur at most daily.
func parsePattern(pattern string, anchor time.Time) (*rrule.RRule, string, error) {
	normalized := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(pattern), "RRULE:"))
	if normalized == "" {
		return nil, "", ErrInvalidSeriesPattern
	}
	opt, err := rrule.StrToROption(normalized)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSeriesPattern, err)
	}
	if !opt.Dtstart.IsZero() {
		return nil, "", fmt.Errorf("%w: DTSTART comes from the template route", ErrInvalidSeriesPattern)
	}
	if opt.Freq > rrule.DAILY {
		return nil, "", fmt.Errorf("%w: routes recur at most daily", ErrInvalidSeriesPattern)
	}
	opt.Dtstart = anchor.UTC()
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSeriesPattern, err)
	}
	return rule, normalized, nil
}
