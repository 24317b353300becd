package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// SchoolRepository handles persistence of driving schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

const schoolColumns = `id, manager_id, name, state, address, phone, description, price, rating, rating_count, photo_path, created_at, updated_at`

// List returns schools matching the catalog filters with a total count.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	base := `FROM schools`
	var conditions []string
	var args []interface{}

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)+1))
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)+1))
		args = append(args, *filter.MaxPrice)
	}
	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)+1))
		args = append(args, *filter.MinRating)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(address) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"price":      "price",
		"rating":     "rating",
		"name":       "name",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "rating"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		schoolColumns, base, clause, orderBy, order, size, offset)

	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", base, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// FindByID returns a school by identifier.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := fmt.Sprintf(`SELECT %s FROM schools WHERE id = $1`, schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// FindByManager returns the school owned by the given manager.
func (r *SchoolRepository) FindByManager(ctx context.Context, managerID string) (*models.School, error) {
	query := fmt.Sprintf(`SELECT %s FROM schools WHERE manager_id = $1 LIMIT 1`, schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, managerID); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsForManager reports whether the manager already registered a school.
func (r *SchoolRepository) ExistsForManager(ctx context.Context, managerID string) (bool, error) {
	const query = `SELECT 1 FROM schools WHERE manager_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, managerID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check manager school: %w", err)
	}
	return true, nil
}

// Create persists a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now
	const query = `INSERT INTO schools (id, manager_id, name, state, address, phone, description, price, rating, rating_count, photo_path, created_at, updated_at)
        VALUES (:id, :manager_id, :name, :state, :address, :phone, :description, :price, :rating, :rating_count, :photo_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// UpdatePhoto records the stored photo path for a school.
func (r *SchoolRepository) UpdatePhoto(ctx context.Context, id, photoPath string) error {
	const query = `UPDATE schools SET photo_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, photoPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("update school photo: %w", err)
	}
	return nil
}
