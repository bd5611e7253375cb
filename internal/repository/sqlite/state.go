package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/repository"
)

// StateRepository implementa repository.StateRepository usando SQLite
type StateRepository struct {
	db *sqlx.DB
}

// Compiletime check: asegura que implementa la interfaz
var _ repository.StateRepository = (*StateRepository)(nil)

// NewStateRepository crea un nuevo repositorio de estado
func NewStateRepository(db *sqlx.DB) *StateRepository {
	return &StateRepository{db: db}
}

// historyRow mapea la tabla history
type historyRow struct {
	ID           string         `db:"id"`
	Position     int            `db:"position"`
	URL          string         `db:"url"`
	DisplayName  string         `db:"display_name"`
	FileName     string         `db:"file_name"`
	Location     string         `db:"location"`
	SizeBytes    int64          `db:"size_bytes"`
	Progress     float64        `db:"progress"`
	Status       string         `db:"status"`
	EncodingJSON string         `db:"encoding"`
	TagsJSON     string         `db:"tags"`
	CategoryJSON string         `db:"categories"`
	ExtractorKey sql.NullString `db:"extractor_key"`
	Platform     sql.NullString `db:"platform"`
	RateLimit    sql.NullString `db:"rate_limit"`
	AddedAt      int64          `db:"added_at"`
	CompletedAt  sql.NullInt64  `db:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message"`
}

type labelRow struct {
	Kind     string `db:"kind"`
	Name     string `db:"name"`
	Position int    `db:"position"`
}

const (
	labelTag      = "tag"
	labelCategory = "category"
)

// Load obtiene historial y pools de labels
func (r *StateRepository) Load(ctx context.Context) (*domain.PersistedState, error) {
	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM history ORDER BY position ASC`); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	history, err := rowsToDomain(rows)
	if err != nil {
		return nil, err
	}

	var labels []labelRow
	if err := r.db.SelectContext(ctx, &labels, `SELECT kind, name, position FROM labels ORDER BY kind, position ASC`); err != nil {
		return nil, fmt.Errorf("get labels: %w", err)
	}

	state := &domain.PersistedState{
		History:    history,
		Tags:       []string{},
		Categories: []string{},
	}
	for _, l := range labels {
		switch l.Kind {
		case labelTag:
			state.Tags = append(state.Tags, l.Name)
		case labelCategory:
			state.Categories = append(state.Categories, l.Name)
		}
	}

	return state, nil
}

// Save reemplaza historial y labels en una sola transacción
func (r *StateRepository) Save(ctx context.Context, state *domain.PersistedState) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels`); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}

	query := `
		INSERT INTO history (id, position, url, display_name, file_name, location,
		                     size_bytes, progress, status, encoding, tags, categories,
		                     extractor_key, platform, rate_limit, added_at,
		                     completed_at, error_message)
		VALUES (:id, :position, :url, :display_name, :file_name, :location,
		        :size_bytes, :progress, :status, :encoding, :tags, :categories,
		        :extractor_key, :platform, :rate_limit, :added_at,
		        :completed_at, :error_message)
	`
	for i, dl := range state.History {
		row, err := domainToRow(dl, i)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("insert history %s: %w", dl.ID, err)
		}
	}

	insertLabel := `INSERT INTO labels (kind, name, position) VALUES (:kind, :name, :position)`
	for kind, names := range map[string][]string{labelTag: state.Tags, labelCategory: state.Categories} {
		for i, name := range names {
			if _, err := tx.NamedExecContext(ctx, insertLabel, labelRow{Kind: kind, Name: name, Position: i}); err != nil {
				return fmt.Errorf("insert %s %q: %w", kind, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountHistory cuenta las entradas del historial
func (r *StateRepository) CountHistory(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM history`)
	return count, err
}

// Helper: conversión domain → row
func domainToRow(dl *domain.Download, position int) (*historyRow, error) {
	encJSON, err := json.Marshal(dl.Encoding)
	if err != nil {
		return nil, fmt.Errorf("marshal encoding: %w", err)
	}
	tagsJSON, err := json.Marshal(nonNil(dl.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	catJSON, err := json.Marshal(nonNil(dl.Categories))
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}

	row := &historyRow{
		ID:           dl.ID,
		Position:     position,
		URL:          dl.URL,
		DisplayName:  dl.DisplayName,
		FileName:     dl.FileName,
		Location:     dl.Location,
		SizeBytes:    dl.SizeBytes,
		Progress:     dl.Progress,
		Status:       string(dl.Status),
		EncodingJSON: string(encJSON),
		TagsJSON:     string(tagsJSON),
		CategoryJSON: string(catJSON),
		ExtractorKey: nullString(dl.ExtractorKey),
		Platform:     nullString(dl.Platform),
		RateLimit:    nullString(dl.RateLimit),
		AddedAt:      dl.AddedAt.Unix(),
		ErrorMessage: nullString(dl.ErrorMessage),
	}
	if dl.CompletedAt != nil {
		row.CompletedAt = sql.NullInt64{Int64: dl.CompletedAt.Unix(), Valid: true}
	}

	return row, nil
}

// Helper: conversión row → domain
func rowToDomain(row *historyRow) (*domain.Download, error) {
	dl := &domain.Download{
		ID:           row.ID,
		URL:          row.URL,
		DisplayName:  row.DisplayName,
		FileName:     row.FileName,
		Location:     row.Location,
		SizeBytes:    row.SizeBytes,
		Progress:     row.Progress,
		Status:       domain.DownloadStatus(row.Status),
		Controller:   domain.NoController,
		ExtractorKey: row.ExtractorKey.String,
		Platform:     row.Platform.String,
		RateLimit:    row.RateLimit.String,
		AddedAt:      time.Unix(row.AddedAt, 0),
		ErrorMessage: row.ErrorMessage.String,
	}

	if err := json.Unmarshal([]byte(row.EncodingJSON), &dl.Encoding); err != nil {
		return nil, fmt.Errorf("unmarshal encoding of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.TagsJSON), &dl.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.CategoryJSON), &dl.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories of %s: %w", row.ID, err)
	}

	if row.CompletedAt.Valid {
		t := time.Unix(row.CompletedAt.Int64, 0)
		dl.CompletedAt = &t
	}

	return dl, nil
}

// Helper: conversión múltiples rows → domain
func rowsToDomain(rows []historyRow) ([]*domain.Download, error) {
	downloads := make([]*domain.Download, 0, len(rows))

	for i := range rows {
		dl, err := rowToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, dl)
	}

	return downloads, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
