package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/booklend/apiserver/types"
	"github.com/google/uuid"
)

// exportHeader matches the columns the export has always had.
var exportHeader = []string{"Book Title", "Author", "User", "Borrowed Date", "Returned Date"}

const exportTimeLayout = time.RFC3339

// ExportArchiver is the subset of the export archive used here.
type ExportArchiver interface {
	Store(ctx context.Context, key string, r io.Reader, size int64) error
}

// ExportService renders borrow history as CSV for download and,
// when an archive is configured, keeps a copy in object storage.
type ExportService struct {
	repo    BorrowRepository
	archive ExportArchiver
}

func NewExportService(repo BorrowRepository) *ExportService {
	return &ExportService{repo: repo}
}

// WithArchive attaches an optional export archive.
func (s *ExportService) WithArchive(archive ExportArchiver) *ExportService {
	s.archive = archive
	return s
}

// HistoryCSV renders the detailed borrow history for the given scope
// (userID of zero means all users) as CSV bytes, most recent first.
func (s *ExportService) HistoryCSV(ctx context.Context, userID int) ([]byte, error) {
	rows, err := s.repo.DetailedHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return renderHistoryCSV(rows)
}

// HistoryCSVArchived renders the export and stores a copy under a
// unique key when an archive is configured. Archive failures are
// logged, never surfaced: the download still succeeds.
func (s *ExportService) HistoryCSVArchived(ctx context.Context, userID int) ([]byte, error) {
	data, err := s.HistoryCSV(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		key := fmt.Sprintf("history-exports/%s.csv", uuid.NewString())
		if err := s.archive.Store(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			slog.Error("failed to archive history export",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return data, nil
}

func renderHistoryCSV(rows []types.HistoryExportRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		returned := ""
		if row.ReturnedOn != nil {
			returned = row.ReturnedOn.Format(exportTimeLayout)
		}
		record := []string{
			row.BookTitle,
			row.BookAuthor,
			row.UserEmail,
			row.BorrowedOn.Format(exportTimeLayout),
			returned,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
