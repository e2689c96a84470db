package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Feedback is a star rating with an optional comment.
type Feedback struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Stars     int           `json:"stars"`
	Feedback  string        `json:"feedback"`
	CreatedAt time.Time     `json:"createdAt"`
	User      *FeedbackUser `json:"user,omitempty"`
}

// FeedbackUser is the author summary attached to listed feedback.
type FeedbackUser struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

// FeedbackRepository provides operations on feedback.
type FeedbackRepository struct {
	db *sql.DB
}

// Feedbacks returns the feedback repository for this store.
func (s *Store) Feedbacks() *FeedbackRepository {
	return &FeedbackRepository{db: s.db}
}

// Create inserts feedback. Stars outside 1..5 are rejected by the schema.
func (r *FeedbackRepository) Create(f *Feedback) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.CreatedAt = now()

	_, err := r.db.Exec(
		`INSERT INTO feedbacks (id, user_id, stars, feedback, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Stars, f.Feedback, f.CreatedAt.Unix(),
	)
	return err
}

// List returns one page of feedback, newest first, with author details,
// plus the total count.
func (r *FeedbackRepository) List(page, limit int) ([]*Feedback, int, error) {
	page, limit = Page(page, limit)

	total, err := r.Count()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(
		`SELECT f.id, f.user_id, f.stars, f.feedback, f.created_at, u.fullname, u.email
		 FROM feedbacks f JOIN users u ON u.id = f.user_id
		 ORDER BY f.created_at DESC, f.rowid DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	feedbacks := make([]*Feedback, 0)
	for rows.Next() {
		f := &Feedback{User: &FeedbackUser{}}
		var created int64
		if err := rows.Scan(&f.ID, &f.UserID, &f.Stars, &f.Feedback, &created, &f.User.FullName, &f.User.Email); err != nil {
			return nil, 0, err
		}
		f.CreatedAt = fromUnix(created)
		feedbacks = append(feedbacks, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return feedbacks, total, nil
}

// Count returns the number of feedback entries.
func (r *FeedbackRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feedbacks`).Scan(&n)
	return n, err
}

// AverageStars returns the mean rating, or 0 when there is no feedback.
func (r *FeedbackRepository) AverageStars() (float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRow(`SELECT AVG(stars) FROM feedbacks`).Scan(&avg); err != nil {
		return 0, err
	}
	return avg.Float64, nil
}
