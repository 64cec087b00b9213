// internal/repository/prediction_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

// ErrRunNotFound is returned when no prediction run has the requested id.
var ErrRunNotFound = errors.New("prediction run not found")

type PredictionRepository interface {
	SaveRun(ctx context.Context, run *domain.PredictionRun) error
	ListRuns(ctx context.Context, limit int) ([]domain.PredictionRun, error)
	GetRun(ctx context.Context, id string) (*domain.PredictionRun, error)
}
