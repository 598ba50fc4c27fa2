package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/kingst/foodlog/internal/model"
	"github.com/kingst/foodlog/internal/service"
	"github.com/kingst/foodlog/internal/validation"
)

type MealHandler struct {
	mealService *service.MealService
}

func NewMealHandler(mealService *service.MealService) *MealHandler {
	return &MealHandler{
		mealService: mealService,
	}
}

func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mealService.Meals())
}

// mealChanges is the editable part of a meal. Omitted fields keep their value.
type mealChanges struct {
	Date                 *time.Time `json:"date"`
	Description          *string    `json:"description"`
	CaloriesInKcal       *int       `json:"caloriesInKcal"`
	CarbohydratesInGrams *int       `json:"carbohydratesInGrams"`
	ProteinInGrams       *int       `json:"proteinInGrams"`
}

func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	meal, err := h.mealService.Meal(id)
	if errors.Is(err, service.ErrMealNotFound) {
		writeError(w, http.StatusNotFound, "Meal not found")
		return
	}

	var changes mealChanges
	err = decodeJSON(r.Body, &changes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if changes.Date != nil {
		meal.Date = *changes.Date
	}
	if changes.Description != nil {
		meal.Description = *changes.Description
	}
	if changes.CaloriesInKcal != nil {
		meal.CaloriesInKcal = *changes.CaloriesInKcal
	}
	if changes.CarbohydratesInGrams != nil {
		meal.CarbohydratesInGrams = *changes.CarbohydratesInGrams
	}
	if changes.ProteinInGrams != nil {
		meal.ProteinInGrams = *changes.ProteinInGrams
	}
	// Bytes are not re-sent on edit; the stored image stays.
	meal.Image = nil

	report, err := h.mealService.Update(meal)
	switch {
	case errors.Is(err, service.ErrMealNotFound):
		writeError(w, http.StatusNotFound, "Meal not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	markDegraded(w, report)

	updated, err := h.mealService.Meal(id)
	if err != nil {
		// Pruned by the same call.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	report, err := h.mealService.Delete(id)
	if err != nil {
		slog.Error("failed to delete meal", "error", err, "meal_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to delete meal")
		return
	}

	markDegraded(w, report)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MealHandler) Image(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	meal, err := h.mealService.Meal(id)
	if err != nil || len(meal.Image) == 0 {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(meal.Image))
	w.Header().Set("Content-Length", strconv.Itoa(len(meal.Image)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(meal.Image)
}

func (h *MealHandler) Goals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mealService.Goals())
}

func (h *MealHandler) SetGoals(w http.ResponseWriter, r *http.Request) {
	var goals model.DailyGoals
	err := decodeJSON(r.Body, &goals)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.mealService.SetGoals(goals)
	if errors.Is(err, validation.ErrInvalidGoals) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to set goals", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save goals")
		return
	}

	markDegraded(w, report)
	writeJSON(w, http.StatusOK, goals)
}

func (h *MealHandler) Totals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mealService.TodayTotals())
}
