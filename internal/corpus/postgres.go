package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
)

// Fragment is the stored form of one fragment: its raw line records and the
// lemma candidates of each transliterated line.
type Fragment struct {
	ID         string           `json:"museumNumber"`
	Lines      []linetovec.Line `json:"lines"`
	LemmaLines []lemma.Line     `json:"lemmaLines"`
}

// Repository reads and writes the fragments table:
//
//	CREATE TABLE fragments (
//	    id          TEXT PRIMARY KEY,
//	    lines       JSONB NOT NULL DEFAULT '[]',
//	    line_to_vec JSONB NOT NULL DEFAULT '[]',
//	    lemma_lines JSONB NOT NULL DEFAULT '[]',
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Repository struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewRepository(db *postgres.Client) *Repository {
	return &Repository{
		db:     db,
		logger: slog.Default().With("component", "corpus-repository"),
	}
}

// GetEncodings returns the stored encodings of id, which may be empty.
func (r *Repository) GetEncodings(ctx context.Context, id string) ([]linetovec.Sequence, error) {
	var data []byte
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT line_to_vec FROM fragments WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrFragmentNotFound, http.StatusNotFound, "fragment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying encodings of %s: %w", id, err)
	}
	return decodeEncodings(id, data)
}

// AllTransliteratedEncodings returns every fragment with at least one
// encoding, ordered by id.
func (r *Repository) AllTransliteratedEncodings(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, line_to_vec FROM fragments
		WHERE jsonb_array_length(line_to_vec) > 0
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corpus encodings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		encodings, err := decodeEncodings(id, data)
		if err != nil {
			return nil, err
		}
		if len(encodings) == 0 {
			continue
		}
		entries = append(entries, Entry{ID: id, Encodings: encodings})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	r.logger.Debug("corpus encodings loaded",
		"fragments", len(entries),
		"encodings", EncodingCount(entries),
	)
	return entries, nil
}

// LemmaLines loads the lemma lines of ids as search hits, ordered by id.
// Unknown ids are skipped.
func (r *Repository) LemmaLines(ctx context.Context, ids []string) ([]lemma.Hit, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, lemma_lines FROM fragments WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("querying lemma lines: %w", err)
	}
	defer rows.Close()

	var hits []lemma.Hit
	for rows.Next() {
		var (
			hit  lemma.Hit
			data []byte
		)
		if err := rows.Scan(&hit.ID, &data); err != nil {
			return nil, fmt.Errorf("scanning lemma row: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &hit.Lines); err != nil {
				return nil, fmt.Errorf("decoding lemma lines of %s: %w", hit.ID, err)
			}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lemma rows: %w", err)
	}
	return hits, nil
}

// UpsertFragment encodes f's lines and stores the fragment, returning the
// entry the index should hold for it.
func (r *Repository) UpsertFragment(ctx context.Context, f Fragment) (Entry, error) {
	entry := Entry{ID: f.ID, Encodings: linetovec.Encode(f.Lines)}

	lines, err := marshalArray(f.Lines)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling lines of %s: %w", f.ID, err)
	}
	encodings, err := marshalArray(entry.Encodings)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling encodings of %s: %w", f.ID, err)
	}
	lemmaLines, err := marshalArray(f.LemmaLines)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling lemma lines of %s: %w", f.ID, err)
	}

	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (id, lines, line_to_vec, lemma_lines, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			lines = EXCLUDED.lines,
			line_to_vec = EXCLUDED.line_to_vec,
			lemma_lines = EXCLUDED.lemma_lines,
			updated_at = NOW()`,
			f.ID, lines, encodings, lemmaLines,
		)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("upserting fragment %s: %w", f.ID, err)
	}
	r.logger.Debug("fragment stored", "id", f.ID, "encodings", len(entry.Encodings))
	return entry, nil
}

// DeleteFragment removes id, failing with ErrFragmentNotFound when absent.
func (r *Repository) DeleteFragment(ctx context.Context, id string) error {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM fragments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting fragment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting fragment %s: %w", id, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrFragmentNotFound, http.StatusNotFound, "fragment %s not found", id)
	}
	return nil
}

func decodeEncodings(id string, data []byte) ([]linetovec.Sequence, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var encodings []linetovec.Sequence
	if err := json.Unmarshal(data, &encodings); err != nil {
		return nil, fmt.Errorf("decoding encodings of %s: %w", id, err)
	}
	return encodings, nil
}

// marshalArray encodes nil slices as [] so NOT NULL columns hold arrays.
func marshalArray[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
