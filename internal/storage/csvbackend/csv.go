package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/burrow/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"search_id",
	"engine",
	"query",
	"page",
	"rank",
	"title",
	"href",
	"body",
	"created_at",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	// Check if file is empty to write headers
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func toRecord(h *storage.Hit) []string {
	return []string{
		h.ID,
		h.SearchID,
		h.Engine,
		h.Query,
		strconv.Itoa(h.Page),
		strconv.Itoa(h.Rank),
		h.Title,
		h.Href,
		h.Body,
		h.CreatedAt.Format(time.RFC3339Nano),
	}
}

func fromRecord(record []string) *storage.Hit {
	page, _ := strconv.Atoi(record[4])
	rank, _ := strconv.Atoi(record[5])
	createdAt, _ := time.Parse(time.RFC3339Nano, record[9])

	return &storage.Hit{
		ID:        record[0],
		SearchID:  record[1],
		Engine:    record[2],
		Query:     record[3],
		Page:      page,
		Rank:      rank,
		Title:     record[6],
		Href:      record[7],
		Body:      record[8],
		CreatedAt: createdAt,
	}
}

func (b *csvBackend) Save(ctx context.Context, hits ...*storage.Hit) error {
	if len(hits) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (just in case)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}

	w := csv.NewWriter(b.file)
	for _, h := range hits {
		if err := w.Write(toRecord(h)); err != nil {
			return fmt.Errorf("csvbackend: %w", err)
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	// Read headers
	_, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return []*storage.Hit{}, nil
		}
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	var matched []*storage.Hit

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		h := fromRecord(record)
		if !filter.Match(h) {
			continue
		}

		matched = append(matched, h)
	}

	return storage.Arrange(matched, filter), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
