package model

// DailyGoals are the user's daily calorie and macro targets.
type DailyGoals struct {
	Calories      int `json:"calories" db:"calories"`
	Carbohydrates int `json:"carbohydrates" db:"carbohydrates"`
	Protein       int `json:"protein" db:"protein"`
}

// DefaultGoals apply until the user saves their own.
var DefaultGoals = DailyGoals{
	Calories:      2000,
	Carbohydrates: 150,
	Protein:       100,
}

// DailyTotals aggregates the meals captured on one calendar day.
type DailyTotals struct {
	Meals             int        `json:"meals"`
	Calories          int        `json:"calories"`
	Carbohydrates     int        `json:"carbohydrates"`
	Protein           int        `json:"protein"`
	CaloriesRemaining int        `json:"caloriesRemaining"`
	Goals             DailyGoals `json:"goals"`
}
