package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/kingst/foodlog/internal/model"
)

var (
	ErrGoalsNotFound = errors.New("goals not found")
)

// GoalsRepository persists the goals unit, independent of meal history.
type GoalsRepository interface {
	LoadGoals() (*model.DailyGoals, error)
	SaveGoals(goals *model.DailyGoals) error
}

type goalsRepository struct {
	db *sqlx.DB
}

func NewGoalsRepository(db *sqlx.DB) GoalsRepository {
	return &goalsRepository{db: db}
}

func (r *goalsRepository) LoadGoals() (*model.DailyGoals, error) {
	goals := &model.DailyGoals{}
	query := `SELECT calories, carbohydrates, protein FROM goals WHERE id = 1`

	err := r.db.Get(goals, query)
	if err == sql.ErrNoRows {
		return nil, ErrGoalsNotFound
	}
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalsRepository) SaveGoals(goals *model.DailyGoals) error {
	query := `INSERT INTO goals (id, calories, carbohydrates, protein)
	          VALUES (1, $1, $2, $3)
	          ON CONFLICT (id) DO UPDATE
	          SET calories = excluded.calories, carbohydrates = excluded.carbohydrates, protein = excluded.protein`

	_, err := r.db.Exec(query, goals.Calories, goals.Carbohydrates, goals.Protein)
	return err
}
