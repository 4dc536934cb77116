package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// Seed list file names inside the seed directory.
const (
	SeedFileContacts      = "ticketContacts.csv"
	SeedFileCustomers     = "ticketCustomer.csv"
	SeedFileDescriptions  = "ticketDescription.csv"
	SeedFileIssueTypes    = "ticketIssueTypes.csv"
	SeedFilePriorities    = "ticketPriorities.csv"
	SeedFileStatuses      = "ticketStatus.csv"
	SeedFileSubjects      = "ticketSubject.csv"
	SeedFileTechs         = "ticketTech.csv"
	SeedFileLaborTypes    = "timeEntryLaborTypes.csv"
	SeedFileNoteTemplates = "timeEntryNoteTemplates.csv"
)

// DefaultLaborTypes is used when no labor type list is present.
var DefaultLaborTypes = []string{"Remote Support", "Onsite Support", "Project Work", "Maintenance", "Research"}

// DefaultNoteTemplates is used when no note template list is present.
var DefaultNoteTemplates = []string{
	"Documented progress on {subject}.",
	"Updated troubleshooting notes for {subject}.",
	"Recorded configuration changes related to {subject}.",
	"Added findings while reviewing {subject}.",
	"Captured follow-up actions for {subject}.",
}

// SeedDataRepository reads the single-column seed lists from disk.
type SeedDataRepository struct {
	dir    string
	logger *zap.Logger
}

// NewSeedDataRepository constructs the repository rooted at dir.
func NewSeedDataRepository(dir string, logger *zap.Logger) *SeedDataRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedDataRepository{dir: dir, logger: logger}
}

// Load reads every seed list. Missing files yield empty lists; unreadable files are errors.
func (r *SeedDataRepository) Load() (*models.SeedData, error) {
	data := &models.SeedData{}
	targets := []struct {
		file string
		dst  *[]string
	}{
		{SeedFileCustomers, &data.Customers},
		{SeedFileContacts, &data.Contacts},
		{SeedFileDescriptions, &data.Descriptions},
		{SeedFileIssueTypes, &data.IssueTypes},
		{SeedFilePriorities, &data.Priorities},
		{SeedFileStatuses, &data.Statuses},
		{SeedFileSubjects, &data.Subjects},
		{SeedFileTechs, &data.Techs},
		{SeedFileLaborTypes, &data.LaborTypes},
		{SeedFileNoteTemplates, &data.NoteTemplates},
	}
	for _, target := range targets {
		values, err := r.readColumn(target.file)
		if err != nil {
			return nil, err
		}
		*target.dst = values
	}
	if len(data.LaborTypes) == 0 {
		data.LaborTypes = append([]string(nil), DefaultLaborTypes...)
	}
	if len(data.NoteTemplates) == 0 {
		data.NoteTemplates = append([]string(nil), DefaultNoteTemplates...)
	}
	return data, nil
}

func (r *SeedDataRepository) readColumn(name string) ([]string, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("seed list missing", zap.String("file", path))
			return []string{}, nil
		}
		return nil, fmt.Errorf("open seed list %s: %w", name, err)
	}
	defer f.Close()
	return parseColumn(f, name)
}

func parseColumn(src io.Reader, name string) ([]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	values := make([]string, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse seed list %s: %w", name, err)
		}
		if len(row) == 0 {
			continue
		}
		value := strings.TrimSpace(row[0])
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}
