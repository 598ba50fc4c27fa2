package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kingst/foodlog/internal/model"
	"github.com/natefinch/atomic"
)

// fileMealRepository stores the records unit as a JSON array in one file.
type fileMealRepository struct {
	path string
}

func NewFileMealRepository(path string) MealRepository {
	return &fileMealRepository{path: path}
}

func (r *fileMealRepository) LoadMeals() ([]*model.MealRecord, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*model.MealRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read meals: %w", err)
	}

	var meals []*model.MealRecord
	err = json.Unmarshal(data, &meals)
	if err != nil {
		return nil, fmt.Errorf("failed to parse meals: %w", err)
	}

	return meals, nil
}

func (r *fileMealRepository) SaveMeals(meals []*model.MealRecord) error {
	if meals == nil {
		meals = []*model.MealRecord{}
	}
	return writeJSON(r.path, meals)
}

// fileGoalsRepository stores the goals unit as a JSON object in its own file.
type fileGoalsRepository struct {
	path string
}

func NewFileGoalsRepository(path string) GoalsRepository {
	return &fileGoalsRepository{path: path}
}

func (r *fileGoalsRepository) LoadGoals() (*model.DailyGoals, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrGoalsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read goals: %w", err)
	}

	goals := &model.DailyGoals{}
	err = json.Unmarshal(data, goals)
	if err != nil {
		return nil, fmt.Errorf("failed to parse goals: %w", err)
	}

	return goals, nil
}

func (r *fileGoalsRepository) SaveGoals(goals *model.DailyGoals) error {
	return writeJSON(r.path, goals)
}

// writeJSON replaces the file atomically so readers never see a partial payload
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}
