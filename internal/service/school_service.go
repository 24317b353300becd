package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/pkg/config"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	FindByManager(ctx context.Context, managerID string) (*models.School, error)
	ExistsForManager(ctx context.Context, managerID string) (bool, error)
	Create(ctx context.Context, school *models.School) error
	UpdatePhoto(ctx context.Context, id, photoPath string) error
}

type photoStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// CreateSchoolRequest is the payload for registering a driving school.
type CreateSchoolRequest struct {
	Name        string  `json:"name" validate:"required,min=2"`
	State       string  `json:"state" validate:"required"`
	Address     string  `json:"address" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"required,gt=0"`
}

// UploadSchoolPhotoInput describes an incoming school photo.
type UploadSchoolPhotoInput struct {
	FileName  string
	SizeBytes int64
	Content   io.Reader
}

// SchoolService serves the public catalog and the manager's own school.
type SchoolService struct {
	repo      schoolRepository
	photos    photoStore
	cfg       config.PhotosConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs SchoolService.
func NewSchoolService(repo schoolRepository, photos photoStore, cfg config.PhotosConfig, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, photos: photos, cfg: cfg, validator: validate, logger: logger}
}

// List returns the catalog page matching the filter. Open to guests.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	if filter.State != "" && !models.IsValidState(filter.State) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unknown wilaya %q", filter.State))
	}
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	for i := range schools {
		s.fillPhotoURL(&schools[i])
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return schools, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one school by ID.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driving school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	s.fillPhotoURL(school)
	return school, nil
}

// States returns the list of wilayas schools can register in.
func (s *SchoolService) States() []string {
	states := make([]string, len(models.AlgerianStates))
	copy(states, models.AlgerianStates)
	return states
}

// SchoolForManager resolves the school owned by the given manager.
func (s *SchoolService) SchoolForManager(ctx context.Context, managerID string) (*models.School, error) {
	school, err := s.repo.FindByManager(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no school registered for this manager")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	s.fillPhotoURL(school)
	return school, nil
}

// Create registers a school for a manager. One school per manager.
func (s *SchoolService) Create(ctx context.Context, managerID string, req CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if !models.IsValidState(req.State) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown wilaya %q", req.State))
	}

	exists, err := s.repo.ExistsForManager(ctx, managerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check manager school")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "manager already has a registered school")
	}

	school := &models.School{
		ManagerID:   managerID,
		Name:        strings.TrimSpace(req.Name),
		State:       req.State,
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	return school, nil
}

// UploadPhoto replaces a school's catalog photo.
func (s *SchoolService) UploadPhoto(ctx context.Context, managerID string, in UploadSchoolPhotoInput) (*models.School, error) {
	school, err := s.SchoolForManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if in.SizeBytes > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("photo exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}

	relPath := filepath.Join("schools", school.ID,
		fmt.Sprintf("photo_%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(in.FileName))))
	if _, err := s.photos.SaveStream(relPath, in.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}

	oldPath := school.PhotoPath
	if err := s.repo.UpdatePhoto(ctx, school.ID, relPath); err != nil {
		if delErr := s.photos.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned photo", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update photo")
	}
	if oldPath != "" {
		if err := s.photos.Delete(oldPath); err != nil {
			s.logger.Warn("failed to remove previous photo", zap.String("path", oldPath), zap.Error(err))
		}
	}

	school.PhotoPath = relPath
	s.fillPhotoURL(school)
	return school, nil
}

func (s *SchoolService) fillPhotoURL(school *models.School) {
	if school.PhotoPath == "" {
		return
	}
	school.PhotoURL = "/api/v1/photos/" + filepath.ToSlash(school.PhotoPath)
}
