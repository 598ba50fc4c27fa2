package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kingst/foodlog/internal/model"
)

// MealRepository persists the records unit: the full, ordered meal list.
// An absent unit loads as an empty list.
type MealRepository interface {
	LoadMeals() ([]*model.MealRecord, error)
	SaveMeals(meals []*model.MealRecord) error
}

type mealRepository struct {
	db *sqlx.DB
}

func NewMealRepository(db *sqlx.DB) MealRepository {
	return &mealRepository{db: db}
}

func (r *mealRepository) LoadMeals() ([]*model.MealRecord, error) {
	var meals []*model.MealRecord
	query := `SELECT id, image_filename, date, description, calories_kcal, carbohydrates_grams, protein_grams
	          FROM meals ORDER BY position ASC`

	err := r.db.Select(&meals, query)
	if err != nil {
		return nil, err
	}

	return meals, nil
}

// SaveMeals replaces the stored list in one transaction, keeping display order in position
func (r *mealRepository) SaveMeals(meals []*model.MealRecord) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`DELETE FROM meals`)
	if err != nil {
		return fmt.Errorf("failed to clear meals: %w", err)
	}

	query := `INSERT INTO meals (id, position, image_filename, date, description, calories_kcal, carbohydrates_grams, protein_grams)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, meal := range meals {
		_, err = tx.Exec(query,
			meal.ID,
			i,
			meal.ImageFilename,
			meal.Date,
			meal.Description,
			meal.CaloriesInKcal,
			meal.CarbohydratesInGrams,
			meal.ProteinInGrams,
		)
		if err != nil {
			return fmt.Errorf("failed to insert meal %s: %w", meal.ID, err)
		}
	}

	return tx.Commit()
}
