package queries

import (
	"context"
	"log/slog"
	"time"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// Presenter builds read views. Delays are computed at the presenter's clock
// with the configured threshold; fleet names are looked up best-effort.
type Presenter struct {
	directory fleetDomain.Directory
	threshold time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

// NewPresenter creates a presenter. A nil directory skips name lookups.
func NewPresenter(directory fleetDomain.Directory, threshold time.Duration, clock func() time.Time, logger *slog.Logger) *Presenter {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{directory: directory, threshold: threshold, clock: clock, logger: logger}
}

// Now is the observation time used for delay detection.
func (p *Presenter) Now() time.Time { return p.clock() }

// Threshold is the configured delay threshold.
func (p *Presenter) Threshold() time.Duration { return p.threshold }

// Route renders the full view of a route.
func (p *Presenter) Route(ctx context.Context, r *domain.Route) *RouteDTO {
	now := p.clock()
	dto := &RouteDTO{
		ID:             r.ID(),
		Name:           r.Name(),
		ServiceDate:    r.ServiceDate().Format(time.DateOnly),
		Status:         r.Status().String(),
		DriverID:       r.DriverID(),
		VehicleID:      r.VehicleID(),
		EstimatedStart: r.EstimatedStart(),
		EstimatedEnd:   r.EstimatedEnd(),
		ActualStart:    r.ActualStart(),
		ActualEnd:      r.ActualEnd(),
		SeriesID:       r.SeriesID(),
		Version:        r.Version(),
		Stops:          make([]StopDTO, 0, len(r.Stops())),
		ReviewFlags:    make([]ReviewFlagDTO, 0, len(r.ReviewFlags())),
		Delay:          NewDelaySummaryDTO(domain.SummarizeDelays(r.Stops(), now, p.threshold)),
		Capabilities:   []string{},
		NextStatuses:   []string{},
		CreatedAt:      r.CreatedAt(),
		UpdatedAt:      r.UpdatedAt(),
	}
	for _, s := range r.Stops() {
		dto.Stops = append(dto.Stops, p.stop(r, s, now))
	}
	for _, f := range r.ReviewFlags() {
		dto.ReviewFlags = append(dto.ReviewFlags, NewReviewFlagDTO(f))
	}
	for _, op := range r.Capabilities() {
		dto.Capabilities = append(dto.Capabilities, string(op))
	}
	for _, s := range domain.NextStatuses(r.Status()) {
		dto.NextStatuses = append(dto.NextStatuses, s.String())
	}
	p.resolveNames(ctx, dto)
	return dto
}

// Stop renders one stop of a route.
func (p *Presenter) Stop(r *domain.Route, s *domain.Stop) *StopDTO {
	dto := p.stop(r, s, p.clock())
	return &dto
}

// Summary renders a listing row.
func (p *Presenter) Summary(r *domain.Route) RouteSummaryDTO {
	row := RouteSummaryDTO{
		ID:             r.ID(),
		Name:           r.Name(),
		Status:         r.Status().String(),
		DriverID:       r.DriverID(),
		VehicleID:      r.VehicleID(),
		EstimatedStart: r.EstimatedStart(),
		EstimatedEnd:   r.EstimatedEnd(),
		StopCount:      len(r.Stops()),
		OpenFlags:      len(r.OpenReviewFlags()),
		Delay:          NewDelaySummaryDTO(domain.SummarizeDelays(r.Stops(), p.clock(), p.threshold)),
	}
	for _, s := range r.Stops() {
		switch {
		case s.IsExecuted():
			row.ExecutedStops++
		case s.IsCancelled():
			row.CancelledStops++
		}
	}
	return row
}

func (p *Presenter) stop(r *domain.Route, s *domain.Stop, now time.Time) StopDTO {
	addr := s.Address()
	dto := StopDTO{
		ID:         s.ID(),
		RouteID:    s.RouteID(),
		ChildID:    s.ChildID(),
		ScheduleID: s.ScheduleID(),
		Type:       string(s.Type()),
		Position:   s.Position(),
		Address: AddressDTO{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Notes:      addr.Notes,
		},
		Guardian:      GuardianDTO{Name: s.Guardian().Name, Phone: s.Guardian().Phone},
		EstimatedTime: s.EstimatedTime(),
		ActualTime:    s.ActualTime(),
		State:         string(s.State()),
	}
	if exec := s.Execution(); exec != nil {
		actor, at := exec.Actor, exec.At
		dto.Outcome = string(exec.Outcome)
		dto.OutcomeNotes = exec.Notes
		dto.ExecutedBy = &actor
		dto.ExecutedAt = &at
	}
	if c := s.Cancellation(); c != nil {
		actor, at := c.Actor, c.At
		dto.CancellationReason = c.Reason
		dto.CancelledBy = &actor
		dto.CancelledAt = &at
	}
	if info := domain.DetectDelay(s, now, p.threshold); info != nil {
		dto.Delay = &DelayDTO{Type: string(info.Type), Minutes: info.Minutes, DetectedAt: info.DetectedAt}
	}
	for _, f := range r.OpenReviewFlags() {
		if f.StopID() == s.ID() {
			dto.NeedsReview = true
			break
		}
	}
	return dto
}

func (p *Presenter) resolveNames(ctx context.Context, dto *RouteDTO) {
	if p.directory == nil {
		return
	}
	if dto.DriverID != nil {
		if driver, err := p.directory.GetDriver(ctx, *dto.DriverID); err == nil {
			dto.DriverName = driver.Name
		} else {
			p.logger.DebugContext(ctx, "driver name unavailable", "driver_id", *dto.DriverID, "error", err)
		}
	}
	if dto.VehicleID != nil {
		if vehicle, err := p.directory.GetVehicle(ctx, *dto.VehicleID); err == nil {
			dto.VehicleRegistration = vehicle.Registration
		} else {
			p.logger.DebugContext(ctx, "vehicle registration unavailable", "vehicle_id", *dto.VehicleID, "error", err)
		}
	}
}
