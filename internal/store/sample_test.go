package store

import (
	"errors"
	"testing"

	"github.com/ayusman/signspeak/internal/sign"
)

func TestSampleRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	batch := []*Sample{
		{Label: "Hello", Vector: []float64{0.1, 0.2, 0.3, 0.4}},
		{Label: "Yes", Vector: []float64{0.9, 0.8, 0.7, 0.6}},
		{Label: "Hello", Vector: []float64{0.11, 0.19, 0.31, 0.42}},
	}
	if err := repo.CreateBatch(batch); err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}
	extra := &Sample{Label: "No", Vector: []float64{0, 0, 0, 0}}
	if err := repo.Create(extra); err != nil {
		t.Fatalf("failed to create sample: %v", err)
	}

	t.Run("list keeps insertion order", func(t *testing.T) {
		list, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		want := []string{"Hello", "Yes", "Hello", "No"}
		if len(list) != len(want) {
			t.Fatalf("got %d samples, want %d", len(list), len(want))
		}
		for i, label := range want {
			if list[i].Label != label {
				t.Errorf("list[%d].Label = %q, want %q", i, list[i].Label, label)
			}
		}
		if list[1].Vector[2] != 0.7 {
			t.Errorf("vector not round-tripped: %v", list[1].Vector)
		}
	})

	t.Run("labels", func(t *testing.T) {
		labels, err := repo.Labels()
		if err != nil {
			t.Fatalf("failed to get labels: %v", err)
		}
		if labels["Hello"] != 2 || labels["Yes"] != 1 || labels["No"] != 1 {
			t.Errorf("unexpected label counts: %v", labels)
		}
	})

	t.Run("get and delete", func(t *testing.T) {
		got, err := repo.GetByID(batch[1].ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Label != "Yes" {
			t.Errorf("Label = %q, want Yes", got.Label)
		}

		if err := repo.Delete(batch[1].ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.GetByID(batch[1].ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(batch[1].ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestSampleRepository_DuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	err := repo.CreateBatch([]*Sample{
		{ID: "same", Label: "A", Vector: []float64{1}},
		{ID: "same", Label: "B", Vector: []float64{2}},
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("batch should be rolled back, found %d samples", len(list))
	}
}

func TestSampleRepository_Vectors(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	if err := repo.CreateBatch([]*Sample{
		{Label: "A", Vector: []float64{1, 2}},
		{Label: "B", Vector: []float64{3, 4}},
	}); err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}

	vecs, err := repo.Vectors()
	if err != nil {
		t.Fatalf("failed to load vectors: %v", err)
	}
	if len(vecs) != 2 || vecs[0].Label != "A" || vecs[1].Vector[1] != 4 {
		t.Errorf("unexpected vectors: %+v", vecs)
	}
}

func TestSampleRepository_Classifier(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	c, err := repo.Classifier()
	if err != nil {
		t.Fatalf("empty store: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}

	if _, err := s.DB().Exec(`INSERT INTO samples (id, label, vector, created_at) VALUES
		('a', 'A', '[0,0]', 1), ('b', 'B', '[1,1,1]', 2)`); err != nil {
		t.Fatalf("failed to insert rows: %v", err)
	}
	if _, err := repo.Classifier(); !errors.Is(err, sign.ErrInconsistentDimensions) {
		t.Errorf("expected ErrInconsistentDimensions, got %v", err)
	}
}

func TestSampleRepository_RejectsMixedLengths(t *testing.T) {
	s := newTestStore(t)
	repo := s.Samples()

	if err := repo.CreateBatch([]*Sample{{Label: "A", Vector: []float64{0, 0}}}); err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}

	err := repo.Create(&Sample{Label: "B", Vector: []float64{1, 2, 3, 4}})
	if !errors.Is(err, sign.ErrInconsistentDimensions) {
		t.Errorf("expected ErrInconsistentDimensions against stored samples, got %v", err)
	}

	err = repo.CreateBatch([]*Sample{
		{Label: "C", Vector: []float64{1, 1}},
		{Label: "D", Vector: []float64{1}},
	})
	if !errors.Is(err, sign.ErrInconsistentDimensions) {
		t.Errorf("expected ErrInconsistentDimensions within the batch, got %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d samples after rejected writes, want 1", len(list))
	}
}
