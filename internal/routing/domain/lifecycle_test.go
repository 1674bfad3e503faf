package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	for _, status := range domain.AllStatuses {
		for _, op := range []domain.Operation{
			domain.OpReorderStops, domain.OpReassignDriver, domain.OpReassignVehicle, domain.OpRecordOutcome,
			domain.OpChangeStatus, domain.OpCreateSeries, domain.OpCancelStop, domain.OpClearFlag, domain.OpDeleteRoute,
		} {
			err := domain.Guard(op, status)
			if domain.Allows(op, status) {
				assert.NoError(t, err, "%s in %s", op, status)
				continue
			}
			require.ErrorIs(t, err, domain.ErrPreconditionFailed, "%s in %s", op, status)
			precondition := err.(*domain.PreconditionError)
			assert.Equal(t, status, precondition.Current)
			assert.Equal(t, domain.PermittedStatuses(op), precondition.Required)
		}
	}
}

func TestGuard_TerminalStatusesAllowNoChanges(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusCancelled} {
		assert.Equal(t,
			[]domain.Operation{domain.OpClearFlag, domain.OpDeleteRoute},
			domain.Capabilities(status), status.String())
		assert.Empty(t, domain.NextStatuses(status))
		assert.True(t, status.IsTerminal())
	}
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, []domain.Operation{
		domain.OpRecordOutcome, domain.OpChangeStatus, domain.OpCancelStop, domain.OpClearFlag,
	}, domain.Capabilities(domain.StatusInProgress))
	assert.Contains(t, domain.Capabilities(domain.StatusPlanned), domain.OpCreateSeries)
	assert.NotContains(t, domain.Capabilities(domain.StatusDriverMissing), domain.OpCreateSeries)
}

func TestPreconditionError_Message(t *testing.T) {
	err := domain.Guard(domain.OpRecordOutcome, domain.StatusDriverMissing)

	assert.EqualError(t, err, "cannot record a stop outcome on a driver-missing route (requires IN_PROGRESS)")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.StatusPlanned, domain.StatusDriverMissing))
	assert.True(t, domain.CanTransition(domain.StatusDriverMissing, domain.StatusPlanned))
	assert.False(t, domain.CanTransition(domain.StatusCompleted, domain.StatusInProgress))
	assert.False(t, domain.CanTransition(domain.StatusInProgress, domain.StatusPlanned))
}

func TestParseStatus(t *testing.T) {
	tests := map[string]domain.Status{
		"PLANNED":        domain.StatusPlanned,
		"in_progress":    domain.StatusInProgress,
		"driver-missing": domain.StatusDriverMissing,
		" Completed ":    domain.StatusCompleted,
	}
	for in, want := range tests {
		got, err := domain.ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := domain.ParseStatus("paused")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
