package cli

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"concurrent", fmt.Errorf("reorder: %w", domain.ErrConcurrentModification), "someone else just changed this route, please refresh"},
		{"precondition", &domain.PreconditionError{Operation: domain.OpReorderStops, Required: []domain.Status{domain.StatusPlanned}, Current: domain.StatusCompleted}, ""},
		{"fleet down", fmt.Errorf("lookup: %w", resilience.ErrUnavailable), "the fleet directory is unavailable, try again shortly"},
		{"other", fmt.Errorf("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			if tt.want == "" {
				assert.Contains(t, got, "cannot")
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpectedVersion(t *testing.T) {
	assert.Nil(t, ExpectedVersion(-1))
	assert.Equal(t, 3, *ExpectedVersion(3))
}
