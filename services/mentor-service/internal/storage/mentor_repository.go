package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
	"mentorhub/services/mentor-service/internal/model"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const mentorSelect = `
	SELECT id::text, user_id::text, display_name, COALESCE(title, ''), COALESCE(bio, ''),
		COALESCE(category_id::text, ''), COALESCE(subcategory_id::text, ''),
		hourly_rate_cents, currency, time_zone,
		COALESCE(rating, 0), COALESCE(review_count, 0), approved, created_at
	FROM mentors
`

type ListFilter struct {
	CategoryID    string
	SubcategoryID string
	Search        string
	Limit         int
}

// List returns approved mentors, optionally narrowed by category and a
// websearch-style text query against the profile's search vector.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]model.Mentor, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	query := mentorSelect + ` WHERE approved`
	args := []any{}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		query += ` AND category_id = $` + itoa(len(args))
	}
	if f.SubcategoryID != "" {
		args = append(args, f.SubcategoryID)
		query += ` AND subcategory_id = $` + itoa(len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, s)
		query += ` AND search_tsv @@ websearch_to_tsquery('simple', $` + itoa(len(args)) + `)`
	}
	args = append(args, f.Limit)
	query += ` ORDER BY rating DESC NULLS LAST, review_count DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentors []model.Mentor
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, err
		}
		mentors = append(mentors, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return mentors, nil
}

func (r *Repository) Get(ctx context.Context, mentorID string) (model.Mentor, error) {
	return scanMentor(r.pool.QueryRow(ctx, mentorSelect+` WHERE id = $1`, mentorID))
}

func (r *Repository) GetByUser(ctx context.Context, userID string) (model.Mentor, error) {
	return scanMentor(r.pool.QueryRow(ctx, mentorSelect+` WHERE user_id = $1`, userID))
}

// CreateApproved inserts a mentor row for an approved application. The
// mentor id doubles as the auth user id so bookings and messages address
// mentors without an extra lookup.
func (r *Repository) CreateApproved(ctx context.Context, tx pgx.Tx, app model.Application) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO mentors (id, user_id, display_name, title, bio, category_id, time_zone, currency, approved)
		VALUES ($1, $1, $2, $3, $4, NULLIF($5, '')::uuid, $6, 'usd', true)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			title = EXCLUDED.title,
			bio = EXCLUDED.bio,
			approved = true
		RETURNING id::text
	`, app.UserID, app.DisplayName, app.Title, app.Bio, app.CategoryID, app.TimeZone).Scan(&id)
	return id, err
}

func (r *Repository) UpdateProfile(ctx context.Context, mentorID string, m model.Mentor) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE mentors
		SET display_name = $2,
			title = $3,
			bio = $4,
			category_id = NULLIF($5, '')::uuid,
			subcategory_id = NULLIF($6, '')::uuid,
			hourly_rate_cents = $7,
			time_zone = $8,
			updated_at = now()
		WHERE id = $1
	`, mentorID, m.DisplayName, m.Title, m.Bio, m.CategoryID, m.SubcategoryID, m.HourlyRateCents, m.TimeZone)
	return err
}

func (r *Repository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.name, COALESCE(s.id::text, ''), COALESCE(s.name, '')
		FROM categories c
		LEFT JOIN subcategories s ON s.category_id = c.id
		ORDER BY c.name, s.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []model.Category
	index := map[string]int{}
	for rows.Next() {
		var catID, catName, subID, subName string
		if err := rows.Scan(&catID, &catName, &subID, &subName); err != nil {
			return nil, err
		}
		i, ok := index[catID]
		if !ok {
			categories = append(categories, model.Category{ID: catID, Name: catName})
			i = len(categories) - 1
			index[catID] = i
		}
		if subID != "" {
			categories[i].Subcategories = append(categories[i].Subcategories, model.Subcategory{
				ID:         subID,
				CategoryID: catID,
				Name:       subName,
			})
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return categories, nil
}

func (r *Repository) AddMedia(ctx context.Context, item model.MediaItem) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mentor_media (id, mentor_id, kind, url, position)
		VALUES ($1, $2, $3, $4, $5)
	`, id, item.MentorID, item.Kind, item.URL, item.Position)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListMedia(ctx context.Context, mentorID string) ([]model.MediaItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, mentor_id::text, kind, url, position, created_at
		FROM mentor_media
		WHERE mentor_id = $1
		ORDER BY position, created_at
	`, mentorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.MediaItem
	for rows.Next() {
		var item model.MediaItem
		if err := rows.Scan(&item.ID, &item.MentorID, &item.Kind, &item.URL, &item.Position, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) DeleteMedia(ctx context.Context, mentorID, mediaID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM mentor_media
		WHERE id = $1 AND mentor_id = $2
	`, mediaID, mentorID)
	return err
}

func scanMentor(row pgx.Row) (model.Mentor, error) {
	var m model.Mentor
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.DisplayName,
		&m.Title,
		&m.Bio,
		&m.CategoryID,
		&m.SubcategoryID,
		&m.HourlyRateCents,
		&m.Currency,
		&m.TimeZone,
		&m.Rating,
		&m.ReviewCount,
		&m.Approved,
		&m.CreatedAt,
	)
	return m, err
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
