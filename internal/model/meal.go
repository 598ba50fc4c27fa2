package model

import (
	"time"
)

// MealRecord is a committed meal entry. Image holds the blob bytes in memory and
// is never written into the records unit; ImageFilename references the blob.
type MealRecord struct {
	ID                   string    `json:"mealID" db:"id"`
	ImageFilename        *string   `json:"imageFilename" db:"image_filename"`
	Date                 time.Time `json:"date" db:"date"`
	Description          string    `json:"description" db:"description"`
	CaloriesInKcal       int       `json:"caloriesInKcal" db:"calories_kcal"`
	CarbohydratesInGrams int       `json:"carbohydratesInGrams" db:"carbohydrates_grams"`
	ProteinInGrams       int       `json:"proteinInGrams" db:"protein_grams"`
	Image                []byte    `json:"-" db:"-"`
}

// HasImage reports whether the record references a retained blob.
func (m *MealRecord) HasImage() bool {
	return m.ImageFilename != nil && *m.ImageFilename != ""
}

// Clone returns a deep copy so callers never alias the store's snapshot.
func (m *MealRecord) Clone() *MealRecord {
	c := m.CloneMeta()
	if m.Image != nil {
		c.Image = append([]byte(nil), m.Image...)
	}
	return c
}

// CloneMeta copies everything but the image bytes.
func (m *MealRecord) CloneMeta() *MealRecord {
	c := *m
	c.Image = nil
	if m.ImageFilename != nil {
		name := *m.ImageFilename
		c.ImageFilename = &name
	}
	return &c
}
