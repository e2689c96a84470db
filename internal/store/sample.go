package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/signspeak/internal/sign"
)

// Sample is a stored labeled landmark vector.
type Sample struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Vector    []float64 `json:"vector"`
	CreatedAt time.Time `json:"createdAt"`
}

// SampleRepository provides operations on classifier samples.
type SampleRepository struct {
	db *sql.DB
	mu *sync.Mutex
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db, mu: &s.samplesMu}
}

// Create inserts a single sample.
func (r *SampleRepository) Create(sm *Sample) error {
	return r.CreateBatch([]*Sample{sm})
}

// CreateBatch inserts samples in a single transaction. The new vectors must
// have the same length as each other and as the stored ones, otherwise
// nothing is written and the error wraps sign.ErrInconsistentDimensions.
func (r *SampleRepository) CreateBatch(samples []*Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stored, err := listSamples(tx)
	if err != nil {
		return err
	}
	all := make([]sign.Sample, 0, len(stored)+len(samples))
	for _, sm := range stored {
		all = append(all, sign.Sample{Label: sm.Label, Vector: sm.Vector})
	}
	for _, sm := range samples {
		all = append(all, sign.Sample{Label: sm.Label, Vector: sm.Vector})
	}
	if _, err := sign.NewClassifier(all); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (id, label, vector, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	t := now()
	for _, sm := range samples {
		if sm.ID == "" {
			sm.ID = uuid.New().String()
		}
		if sm.Vector == nil {
			sm.Vector = []float64{}
		}
		sm.CreatedAt = t

		data, err := json.Marshal(sm.Vector)
		if err != nil {
			return fmt.Errorf("encode vector for %q: %w", sm.Label, err)
		}
		if _, err := stmt.Exec(sm.ID, sm.Label, string(data), t.Unix()); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a sample by ID.
func (r *SampleRepository) GetByID(id string) (*Sample, error) {
	var data string
	var created int64
	sm := &Sample{}
	err := r.db.QueryRow(
		`SELECT id, label, vector, created_at FROM samples WHERE id = ?`, id,
	).Scan(&sm.ID, &sm.Label, &data, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &sm.Vector); err != nil {
		return nil, fmt.Errorf("decode vector for sample %s: %w", sm.ID, err)
	}
	sm.CreatedAt = fromUnix(created)
	return sm, nil
}

// List returns all samples in insertion order.
func (r *SampleRepository) List() ([]*Sample, error) {
	return listSamples(r.db)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func listSamples(q querier) ([]*Sample, error) {
	rows, err := q.Query(`SELECT id, label, vector, created_at FROM samples ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]*Sample, 0)
	for rows.Next() {
		sm := &Sample{}
		var data string
		var created int64
		if err := rows.Scan(&sm.ID, &sm.Label, &data, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &sm.Vector); err != nil {
			return nil, fmt.Errorf("decode vector for sample %s: %w", sm.ID, err)
		}
		sm.CreatedAt = fromUnix(created)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Vectors returns all samples, in insertion order, as classifier input.
func (r *SampleRepository) Vectors() ([]sign.Sample, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make([]sign.Sample, len(list))
	for i, sm := range list {
		out[i] = sign.Sample{Label: sm.Label, Vector: sm.Vector}
	}
	return out, nil
}

// Classifier builds a classifier over all stored samples.
func (r *SampleRepository) Classifier() (*sign.Classifier, error) {
	vecs, err := r.Vectors()
	if err != nil {
		return nil, err
	}
	return sign.NewClassifier(vecs)
}

// Labels returns the number of samples per label.
func (r *SampleRepository) Labels() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM samples GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[label] = n
	}
	return out, rows.Err()
}

// Delete removes a sample by ID.
func (r *SampleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}
