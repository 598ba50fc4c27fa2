package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kingst/foodlog/internal/metrics"
	"github.com/kingst/foodlog/internal/model"
	"github.com/kingst/foodlog/internal/repository"
	"github.com/kingst/foodlog/internal/storage"
	"github.com/kingst/foodlog/internal/validation"
)

var (
	ErrMealNotFound = errors.New("meal not found")
)

// BlobFailure records one image write or delete that did not succeed.
type BlobFailure struct {
	MealID string
	Op     string // "save" or "delete"
	Err    error
}

// Report describes the best-effort side effects of a mutating call. A degraded
// report never means the mutation was rejected: the in-memory snapshot is
// updated regardless and stays the source of truth for the process lifetime.
type Report struct {
	Pruned       []string
	BlobFailures []BlobFailure
	PersistErr   error
}

// Degraded reports whether any blob or persistence write failed.
func (r *Report) Degraded() bool {
	return r != nil && (len(r.BlobFailures) > 0 || r.PersistErr != nil)
}

func (r *Report) blobFailed(mealID, op string, err error) {
	r.BlobFailures = append(r.BlobFailures, BlobFailure{MealID: mealID, Op: op, Err: err})
	metrics.RecordBlobFailure(op)
}

func (r *Report) persistFailed(err error) {
	r.PersistErr = errors.Join(r.PersistErr, err)
	metrics.RecordPersistFailure()
}

// MealService owns the durable meal list and the daily goals. All calls are
// serialised by one mutex; the snapshot is hydrated from the repositories on
// the first call and kept for the process lifetime.
type MealService struct {
	mu sync.Mutex

	mealRepo  repository.MealRepository
	goalsRepo repository.GoalsRepository
	blobs     storage.BlobStore
	retention int // days
	now       func() time.Time

	loaded bool
	meals  []*model.MealRecord
	goals  model.DailyGoals
	// stale holds records already past retention when hydrated. They are hidden
	// from queries and cleaned up (blob + persisted list) by the next prune.
	stale []*model.MealRecord
}

func NewMealService(
	mealRepo repository.MealRepository,
	goalsRepo repository.GoalsRepository,
	blobs storage.BlobStore,
	retentionDays int,
) *MealService {
	return &MealService{
		mealRepo:  mealRepo,
		goalsRepo: goalsRepo,
		blobs:     blobs,
		retention: retentionDays,
		now:       time.Now,
		goals:     model.DefaultGoals,
	}
}

// WithClock replaces the time source. Used by tests and tooling.
func (s *MealService) WithClock(now func() time.Time) *MealService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// loadLocked hydrates the snapshot once. Must be called with mu held.
func (s *MealService) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true

	meals, err := s.mealRepo.LoadMeals()
	if err != nil {
		slog.Warn("failed to load meals, starting with empty history", "error", err)
		meals = nil
	}

	cutoff := s.cutoff()
	s.meals = make([]*model.MealRecord, 0, len(meals))
	for _, meal := range meals {
		if meal == nil {
			continue
		}
		if meal.Date.Before(cutoff) {
			s.stale = append(s.stale, meal)
			continue
		}
		s.attachImage(meal)
		s.meals = append(s.meals, meal)
	}

	goals, err := s.goalsRepo.LoadGoals()
	switch {
	case err == nil && validation.ValidateGoals(*goals) == nil:
		s.goals = *goals
	case err == nil:
		slog.Warn("persisted goals invalid, using defaults", "goals", *goals)
	case !errors.Is(err, repository.ErrGoalsNotFound):
		slog.Warn("failed to load goals, using defaults", "error", err)
	}

	slog.Debug("meal history loaded", "meals", len(s.meals), "stale", len(s.stale))
}

// attachImage loads the blob for a hydrated record. A missing or unreadable
// blob leaves the record without an image rather than failing hydration.
func (s *MealService) attachImage(meal *model.MealRecord) {
	if !meal.HasImage() {
		meal.ImageFilename = nil
		return
	}

	data, err := s.blobs.Load(meal.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to load meal image", "meal_id", meal.ID, "error", err)
		}
		meal.ImageFilename = nil
		return
	}
	meal.Image = data
}

func (s *MealService) cutoff() time.Time {
	return s.now().AddDate(0, 0, -s.retention)
}

func (s *MealService) indexOf(id string) int {
	for i, meal := range s.meals {
		if meal.ID == id {
			return i
		}
	}
	return -1
}

// saveImageLocked writes the blob and sets the reference on success. On
// failure the meal falls back to the previous image, which a failed write
// leaves in place, or to none when there is no previous record.
func (s *MealService) saveImageLocked(meal, previous *model.MealRecord, report *Report) {
	err := s.blobs.Save(meal.ID, meal.Image)
	if err != nil {
		slog.Error("failed to save meal image", "meal_id", meal.ID, "error", err)
		report.blobFailed(meal.ID, "save", err)
		meal.Image = nil
		meal.ImageFilename = nil
		if previous != nil {
			meal.Image = previous.Image
			meal.ImageFilename = previous.ImageFilename
		}
		return
	}
	name := s.blobs.Filename(meal.ID)
	meal.ImageFilename = &name
}

func (s *MealService) deleteImageLocked(meal *model.MealRecord, report *Report) {
	err := s.blobs.Delete(meal.ID)
	if err != nil {
		slog.Error("failed to delete meal image", "meal_id", meal.ID, "error", err)
		report.blobFailed(meal.ID, "delete", err)
	}
}

func (s *MealService) persistMealsLocked(report *Report) {
	err := s.mealRepo.SaveMeals(s.meals)
	if err != nil {
		slog.Error("failed to persist meals", "error", err, "meals", len(s.meals))
		report.persistFailed(fmt.Errorf("persist meals: %w", err))
	}
}

// pruneLocked drops every record captured before now minus the retention
// window. A record exactly at the cutoff is kept. The list is persisted again
// only when something was removed.
func (s *MealService) pruneLocked(report *Report) {
	cutoff := s.cutoff()

	expired := s.stale
	s.stale = nil

	kept := s.meals[:0:0]
	for _, meal := range s.meals {
		if meal.Date.Before(cutoff) {
			expired = append(expired, meal)
			continue
		}
		kept = append(kept, meal)
	}

	if len(expired) == 0 {
		return
	}

	for _, meal := range expired {
		s.deleteImageLocked(meal, report)
		report.Pruned = append(report.Pruned, meal.ID)
	}
	s.meals = kept
	s.persistMealsLocked(report)

	metrics.RecordPruned(len(expired))
	slog.Info("pruned expired meals", "count", len(expired), "cutoff", cutoff)
}

// Add inserts the meal at the front of the list, stores its image when bytes
// are present, persists, then prunes.
func (s *MealService) Add(meal *model.MealRecord) (*Report, error) {
	err := validation.ValidateMeal(meal)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	if s.indexOf(meal.ID) >= 0 {
		return nil, fmt.Errorf("meal %s already exists", meal.ID)
	}

	report := &Report{}
	record := meal.Clone()
	record.ImageFilename = nil

	s.meals = append([]*model.MealRecord{record}, s.meals...)
	if len(record.Image) > 0 {
		s.saveImageLocked(record, nil, report)
	}
	s.persistMealsLocked(report)
	s.pruneLocked(report)

	slog.Info("meal added", "meal_id", record.ID, "calories", record.CaloriesInKcal, "has_image", record.HasImage())
	return report, nil
}

// Meals returns the current list, most recent first. It never writes.
// Image bytes are left out; Meal returns them for a single record.
func (s *MealService) Meals() []*model.MealRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	meals := make([]*model.MealRecord, len(s.meals))
	for i, meal := range s.meals {
		meals[i] = meal.CloneMeta()
	}
	return meals
}

// Meal returns one record by id.
func (s *MealService) Meal(id string) (*model.MealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrMealNotFound
	}
	return s.meals[i].Clone(), nil
}

// Update replaces the record with the same id in place. New image bytes
// overwrite the blob; without bytes the existing image is kept.
func (s *MealService) Update(meal *model.MealRecord) (*Report, error) {
	err := validation.ValidateMeal(meal)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	i := s.indexOf(meal.ID)
	if i < 0 {
		return nil, ErrMealNotFound
	}

	report := &Report{}
	current := s.meals[i]
	record := meal.Clone()

	if len(record.Image) > 0 {
		s.saveImageLocked(record, current, report)
	} else {
		record.Image = current.Image
		record.ImageFilename = current.ImageFilename
	}

	s.meals[i] = record
	s.persistMealsLocked(report)
	s.pruneLocked(report)

	return report, nil
}

// Delete removes the meal and its blob. Deleting an unknown id is a no-op,
// but the blob delete is still attempted.
func (s *MealService) Delete(id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	report := &Report{}
	i := s.indexOf(id)
	if i >= 0 {
		s.deleteImageLocked(s.meals[i], report)
		s.meals = append(s.meals[:i:i], s.meals[i+1:]...)
		s.persistMealsLocked(report)
		slog.Info("meal deleted", "meal_id", id)
	} else if err := s.blobs.Delete(id); err != nil && !errors.Is(err, storage.ErrInvalidID) {
		report.blobFailed(id, "delete", err)
	}
	s.pruneLocked(report)

	return report, nil
}

// Prune applies the retention window without any other mutation.
func (s *MealService) Prune() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	report := &Report{}
	s.pruneLocked(report)
	return report
}

func (s *MealService) Goals() model.DailyGoals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	return s.goals
}

// SetGoals replaces the goals value (last write wins) and persists it.
func (s *MealService) SetGoals(goals model.DailyGoals) (*Report, error) {
	err := validation.ValidateGoals(goals)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	report := &Report{}
	s.goals = goals
	err = s.goalsRepo.SaveGoals(&goals)
	if err != nil {
		slog.Error("failed to persist goals", "error", err)
		report.persistFailed(fmt.Errorf("persist goals: %w", err))
	}
	s.pruneLocked(report)

	return report, nil
}

// TotalsFor sums the meals captured on the local calendar day of day.
func (s *MealService) TotalsFor(day time.Time) model.DailyTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	totals := model.DailyTotals{Goals: s.goals}
	y, m, d := day.Date()
	for _, meal := range s.meals {
		my, mm, md := meal.Date.In(day.Location()).Date()
		if my != y || mm != m || md != d {
			continue
		}
		totals.Meals++
		totals.Calories += meal.CaloriesInKcal
		totals.Carbohydrates += meal.CarbohydratesInGrams
		totals.Protein += meal.ProteinInGrams
	}
	totals.CaloriesRemaining = max(0, s.goals.Calories-totals.Calories)

	return totals
}

// TodayTotals sums today's meals against the goals.
func (s *MealService) TodayTotals() model.DailyTotals {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	return s.TotalsFor(now)
}
