package store

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ragbendra/distributed-job-queue/internal/apperror"
	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// DeadLetterFilter narrows ListDeadLetters; zero-value fields are
// unfiltered.
type DeadLetterFilter struct {
	JobType model.JobType
}

// ListDeadLetters returns dead letters, most recently failed first.
func (s *Store) ListDeadLetters(filter DeadLetterFilter, paging Paging) ([]model.DeadLetter, error) {
	query := s.db.Model(&model.DeadLetter{})
	if filter.JobType != "" {
		query = query.Where("job_type = ?", filter.JobType)
	}

	limit := paging.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	var dls []model.DeadLetter
	err := query.Order("final_failure_at DESC").Limit(limit).Offset(paging.Offset).Find(&dls).Error
	return dls, err
}

// GetDeadLetter fetches a single dead letter by id.
func (s *Store) GetDeadLetter(id uuid.UUID) (*model.DeadLetter, error) {
	var dl model.DeadLetter
	err := s.db.First(&dl, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "dead letter not found")
		}
		return nil, err
	}
	return &dl, nil
}

// DeleteDeadLetter removes a dead letter record without touching the
// underlying (already-FAILED) Job.
func (s *Store) DeleteDeadLetter(id uuid.UUID) error {
	res := s.db.Delete(&model.DeadLetter{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.New(apperror.KindNotFound, "dead letter not found")
	}
	return nil
}
