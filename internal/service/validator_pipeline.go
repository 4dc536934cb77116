package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
)

// DiagnosticObserver receives every diagnostic a pipeline emits.
type DiagnosticObserver interface {
	ObserveDiagnostic(models.ValidationDiagnostic)
}

// PipelineOption customises a ValidatorPipeline.
type PipelineOption func(*ValidatorPipeline)

// WithClock overrides the time source used for no-future clamping.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *ValidatorPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPipelineLogger attaches a logger for diagnostics.
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *ValidatorPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver forwards diagnostics to observer.
func WithObserver(observer DiagnosticObserver) PipelineOption {
	return func(p *ValidatorPipeline) {
		p.observer = observer
	}
}

// ValidatorPipeline runs the capacity validators and the time-entry scheduler over one shared
// ValidationState. A pipeline belongs to a single run and is not safe for concurrent use.
type ValidatorPipeline struct {
	state       *ValidationState
	openCap     *OpenTicketCapValidator
	dailyCap    *DailyCapValidator
	scheduler   *NonOverlapTimeEntryScheduler
	diagnostics []models.ValidationDiagnostic
	logger      *zap.Logger
	observer    DiagnosticObserver
	now         func() time.Time
}

// NewValidatorPipeline wires the validators from cfg. Non-positive caps fall back to the stock values.
func NewValidatorPipeline(cfg config.GenerationConfig, roster []string, opts ...PipelineOption) *ValidatorPipeline {
	p := &ValidatorPipeline{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	def := config.DefaultGeneration()
	if cfg.MaxOpenTicketsPerTech < 1 {
		cfg.MaxOpenTicketsPerTech = def.MaxOpenTicketsPerTech
	}
	if cfg.MaxOpenTicketsUnassigned < 1 {
		cfg.MaxOpenTicketsUnassigned = def.MaxOpenTicketsUnassigned
	}
	if cfg.DailyTicketCap < 1 {
		cfg.DailyTicketCap = def.DailyTicketCap
	}

	p.state = NewValidationState(roster)
	p.openCap = NewOpenTicketCapValidator(p.state, cfg.MaxOpenTicketsPerTech, cfg.MaxOpenTicketsUnassigned, cfg.ClampToNow, p.now)
	p.dailyCap = NewDailyCapValidator(p.state, cfg.DailyTicketCap, p.openCap)
	p.scheduler = NewNonOverlapTimeEntryScheduler(p.state, cfg.TimeEntryBufferMinutes, p.now)

	p.openCap.report = p.record
	p.dailyCap.report = p.record
	p.scheduler.report = p.record
	return p
}

// ValidateTicket applies the open-ticket cap and then the daily cap. The ticket is mutated in place.
func (p *ValidatorPipeline) ValidateTicket(t *models.Ticket) *models.Ticket {
	if t == nil {
		return nil
	}
	t = p.openCap.Validate(t)
	return p.dailyCap.Validate(t)
}

// ValidateTimeEntries schedules entries without overlap and returns them in input order.
func (p *ValidatorPipeline) ValidateTimeEntries(ticket *models.Ticket, entries []models.TimeEntry) []models.TimeEntry {
	if len(entries) == 0 {
		return []models.TimeEntry{}
	}
	return p.scheduler.Schedule(ticket, entries)
}

// Diagnostics returns a copy of every diagnostic recorded so far.
func (p *ValidatorPipeline) Diagnostics() []models.ValidationDiagnostic {
	out := make([]models.ValidationDiagnostic, len(p.diagnostics))
	copy(out, p.diagnostics)
	return out
}

// State exposes the shared ledger for inspection.
func (p *ValidatorPipeline) State() *ValidationState {
	return p.state
}

func (p *ValidatorPipeline) record(d models.ValidationDiagnostic) {
	p.diagnostics = append(p.diagnostics, d)

	fields := []zap.Field{
		zap.String("kind", string(d.Kind)),
		zap.String("customer", d.Customer),
		zap.Int("ticket_number", d.TicketNumber),
		zap.String("tech", d.Tech),
	}
	if d.Sequence > 0 {
		fields = append(fields, zap.Int("sequence", d.Sequence))
	}
	for k, v := range d.Meta {
		fields = append(fields, zap.String(k, v))
	}
	switch d.Kind {
	case models.DiagnosticCapacityUnresolved, models.DiagnosticTicketSkipped, models.DiagnosticEntrySkipped:
		p.logger.Warn(d.Message, fields...)
	default:
		p.logger.Debug(d.Message, fields...)
	}

	if p.observer != nil {
		p.observer.ObserveDiagnostic(d)
	}
}
