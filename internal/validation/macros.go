package validation

import (
	"errors"
	"strings"

	"github.com/kingst/foodlog/internal/model"
)

var (
	ErrNegativeMacro = errors.New("calories and macros must not be negative")
	ErrInvalidGoals  = errors.New("goals must be positive")
	ErrMissingID     = errors.New("meal id is required")
)

// ValidateMacros checks the nutritional values of a meal or pending estimate.
// No upper bound is enforced here; clamping is left to the UI.
func ValidateMacros(calories, carbohydrates, protein int) error {
	if calories < 0 || carbohydrates < 0 || protein < 0 {
		return ErrNegativeMacro
	}
	return nil
}

// ValidateMeal validates a record before it enters the store
func ValidateMeal(meal *model.MealRecord) error {
	if meal == nil || strings.TrimSpace(meal.ID) == "" {
		return ErrMissingID
	}
	return ValidateMacros(meal.CaloriesInKcal, meal.CarbohydratesInGrams, meal.ProteinInGrams)
}

// ValidateGoals requires every daily target to be a positive integer
func ValidateGoals(goals model.DailyGoals) error {
	if goals.Calories <= 0 || goals.Carbohydrates <= 0 || goals.Protein <= 0 {
		return ErrInvalidGoals
	}
	return nil
}
