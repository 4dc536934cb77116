package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/export"
	"github.com/noah-isme/helpdesk-datagen/pkg/storage"
)

// Artifact file names written for every run.
const (
	ArtifactTickets     = "tickets.csv"
	ArtifactTimeEntries = "time_entries.csv"
	ArtifactTechStats   = "tech_stats.csv"
	ArtifactDiagnostics = "diagnostics.csv"
	ArtifactStatsPDF    = "tech_stats.pdf"

	exportTimeLayout = "2006-01-02 15:04:05"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders a run's dataset into CSV and PDF artifacts.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.ArtifactSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. signer may be nil, in which case artifacts carry no URL.
func NewExportService(store fileStorage, signer *storage.ArtifactSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Export writes the run artifacts. Files land under runID/ when runID is set, otherwise at the storage root.
func (s *ExportService) Export(ctx context.Context, runID string, result *GenerationResult, includePDF bool) (models.ArtifactList, error) {
	if result == nil {
		return nil, fmt.Errorf("generation result nil")
	}
	csvFiles := []struct {
		name string
		data export.Dataset
	}{
		{ArtifactTickets, TicketDataset(result.Tickets)},
		{ArtifactTimeEntries, TimeEntryDataset(result.TimeEntries)},
		{ArtifactTechStats, TechStatsDataset(result.Stats)},
		{ArtifactDiagnostics, DiagnosticDataset(result.Diagnostics)},
	}

	artifacts := make(models.ArtifactList, 0, len(csvFiles)+1)
	for _, file := range csvFiles {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		payload, err := s.csv.Render(file.data)
		if err != nil {
			return artifacts, fmt.Errorf("render %s: %w", file.name, err)
		}
		artifact, err := s.store(runID, file.name, "csv", payload)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, artifact)
	}

	if includePDF {
		payload, err := s.pdf.Render(export.Document{
			Title: "Technician Ticket Summary",
			Subtitle: []string{
				fmt.Sprintf("Seed %d", result.Seed),
				fmt.Sprintf("Generated %s UTC", result.GeneratedAt.UTC().Format(exportTimeLayout)),
				fmt.Sprintf("%d tickets, %d time entries", len(result.Tickets), len(result.TimeEntries)),
			},
			Table: TechStatsDataset(result.Stats),
		})
		if err != nil {
			return artifacts, fmt.Errorf("render %s: %w", ArtifactStatsPDF, err)
		}
		artifact, err := s.store(runID, ArtifactStatsPDF, "pdf", payload)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, artifact)
	}

	s.logger.Info("artifacts exported", zap.String("run_id", runID), zap.Int("files", len(artifacts)))
	return artifacts, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (*storage.ArtifactClaims, error) {
	if s.signer == nil {
		return nil, storage.ErrInvalidToken
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored artifact.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes artifacts older than ttl, defaulting to the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) store(runID, name, format string, payload []byte) (models.Artifact, error) {
	filename := name
	if runID != "" {
		filename = path.Join(runID, name)
	}
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("store %s: %w", name, err)
	}
	artifact := models.Artifact{Name: name, Format: format, RelativePath: relPath}
	if s.signer == nil || runID == "" {
		return artifact, nil
	}
	token, expiresAt, err := s.signer.Generate(runID, relPath)
	if err != nil {
		return models.Artifact{}, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	artifact.URL = fmt.Sprintf("%s/export/%s", prefix, token)
	artifact.ExpiresAt = &expiresAt
	return artifact, nil
}

// TicketDataset lays tickets out as the tickets.csv table.
func TicketDataset(tickets []models.Ticket) export.Dataset {
	data := export.Dataset{Headers: []string{
		"Ticket Number", "Customer", "Contact", "Subject", "Status", "Description",
		"Issue Type", "Assigned Tech", "Priority", "Start Time", "End Time", "Closed At",
	}}
	for _, t := range tickets {
		closed := ""
		if t.ClosedAt != nil {
			closed = formatExportTime(*t.ClosedAt)
		}
		data.Append(
			strconv.Itoa(t.Number), t.Customer, t.Contact, t.Subject, t.Status, t.Description,
			t.IssueType, t.AssignedTech, t.Priority, formatExportTime(t.StartTime), formatExportTime(t.EndTime), closed,
		)
	}
	return data
}

// TimeEntryDataset lays entries out as the time_entries.csv table.
func TimeEntryDataset(entries []models.TimeEntry) export.Dataset {
	data := export.Dataset{Headers: []string{
		"Customer", "Ticket Number", "Entry Sequence", "Tech", "Duration Minutes", "Visibility",
		"Billable Status", "Labor Type", "Created At", "Notes", "Dependencies",
	}}
	for _, e := range entries {
		deps := make([]string, len(e.Dependencies))
		for i, d := range e.Dependencies {
			deps[i] = strconv.Itoa(d)
		}
		data.Append(
			e.Customer, strconv.Itoa(e.TicketNumber), strconv.Itoa(e.Sequence), e.Tech, strconv.Itoa(e.DurationMinutes),
			e.Visibility, e.BillableStatus, e.LaborType, formatExportTime(e.CreatedAt), e.Notes, strings.Join(deps, ";"),
		)
	}
	return data
}

// TechStatsDataset lays per-tech counts out as a table.
func TechStatsDataset(stats []models.TechStats) export.Dataset {
	data := export.Dataset{Headers: []string{"Tech", "Profile", "Total Tickets", "Resolved", "Open or Pending"}}
	for _, row := range stats {
		data.Append(row.Tech, row.Profile, strconv.Itoa(row.Total), strconv.Itoa(row.Resolved), strconv.Itoa(row.OpenOrPending))
	}
	return data
}

// DiagnosticDataset lays validation diagnostics out as a table.
func DiagnosticDataset(diags []models.ValidationDiagnostic) export.Dataset {
	data := export.Dataset{Headers: []string{"Kind", "Customer", "Ticket Number", "Entry Sequence", "Tech", "Message"}}
	for _, d := range diags {
		seq := ""
		if d.Sequence > 0 {
			seq = strconv.Itoa(d.Sequence)
		}
		data.Append(string(d.Kind), d.Customer, strconv.Itoa(d.TicketNumber), seq, d.Tech, d.Message)
	}
	return data
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}
