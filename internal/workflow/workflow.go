package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kingst/foodlog/internal/metrics"
	"github.com/kingst/foodlog/internal/model"
	"github.com/kingst/foodlog/internal/service"
	"github.com/kingst/foodlog/internal/service/analysis"
	"github.com/kingst/foodlog/internal/validation"
)

var (
	ErrAnalysisInProgress = errors.New("an analysis is already in progress")
	ErrNoPendingAnalysis  = errors.New("no pending analysis")
	// ErrAnalysisDiscarded is returned to the caller whose analysis was
	// cancelled or superseded before its result arrived.
	ErrAnalysisDiscarded = errors.New("analysis discarded")
)

type Status string

const (
	StatusIdle                Status = "idle"
	StatusAnalyzing           Status = "analyzing"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusFailed              Status = "failed"
)

// State is an immutable snapshot handed to readers and subscribers.
type State struct {
	Status  Status                 `json:"status"`
	Pending *model.PendingAnalysis `json:"pending,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// MealRecorder is where confirmed meals go.
type MealRecorder interface {
	Add(meal *model.MealRecord) (*service.Report, error)
}

type Config struct {
	// Preview renders the captured bytes into a display image. It fails for
	// bytes that cannot be decoded. Defaults to validation.Preview.
	Preview func([]byte) ([]byte, error)
	// MaxImageBytes is the upload limit; larger images are downscaled first.
	MaxImageBytes int
	Now           func() time.Time
	NewID         func() string
}

// Changes edits a pending analysis. Nil fields are left alone.
type Changes struct {
	Description   *string `json:"description,omitempty"`
	Calories      *int    `json:"calories,omitempty"`
	Carbohydrates *int    `json:"carbohydrates,omitempty"`
	Protein       *int    `json:"protein,omitempty"`
}

// Workflow drives one capture from analysis to a committed meal. All
// transitions are serialised; each analysis is tagged with a generation so a
// result that arrives after cancel or restart is dropped.
type Workflow struct {
	analyzer analysis.Analyzer
	recorder MealRecorder
	cfg      Config

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc

	nextSub int
	subs    map[int]chan State
}

func New(analyzer analysis.Analyzer, recorder MealRecorder, cfg Config) *Workflow {
	if cfg.Preview == nil {
		cfg.Preview = validation.Preview
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Workflow{
		analyzer: analyzer,
		recorder: recorder,
		cfg:      cfg,
		state:    State{Status: StatusIdle},
		subs:     make(map[int]chan State),
	}
}

// State returns the current snapshot.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// AnalyzeImage runs the pipeline for image and blocks until it settles in
// PendingConfirmation or Failed. Starting while another analysis is active
// or awaiting confirmation returns ErrAnalysisInProgress.
func (w *Workflow) AnalyzeImage(ctx context.Context, image []byte, token string) error {
	ctx, gen, err := w.begin(ctx)
	if err != nil {
		return err
	}
	return w.run(ctx, gen, image, token)
}

// Start is AnalyzeImage without waiting for the result. The in-progress check
// happens before it returns; the outcome is observed through State or Subscribe.
func (w *Workflow) Start(ctx context.Context, image []byte, token string) error {
	ctx, gen, err := w.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		err := w.run(ctx, gen, image, token)
		if err != nil && !errors.Is(err, ErrAnalysisDiscarded) {
			slog.Debug("background analysis finished with error", "error", err)
		}
	}()
	return nil
}

func (w *Workflow) begin(parent context.Context) (context.Context, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state.Status {
	case StatusAnalyzing, StatusPendingConfirmation:
		return nil, 0, ErrAnalysisInProgress
	}

	ctx, cancel := context.WithCancel(parent)
	w.generation++
	w.cancel = cancel
	w.setLocked(State{Status: StatusAnalyzing})

	return ctx, w.generation, nil
}

func (w *Workflow) run(ctx context.Context, gen uint64, image []byte, token string) error {
	start := w.cfg.Now()

	pending, err := w.analyze(ctx, image, token)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation || w.state.Status != StatusAnalyzing {
		slog.Info("discarding stale analysis result", "generation", gen)
		return ErrAnalysisDiscarded
	}
	w.cancel()
	w.cancel = nil

	if err != nil {
		msg := analysis.Message(err)
		slog.Warn("analysis failed", "error", err, "message", msg)
		w.setLocked(State{Status: StatusFailed, Error: msg})
		return err
	}

	slog.Info("analysis ready for confirmation",
		"calories", pending.Calories,
		"confidence", pending.Confidence,
		"duration_ms", w.cfg.Now().Sub(start).Milliseconds(),
	)
	w.setLocked(State{Status: StatusPendingConfirmation, Pending: pending})
	return nil
}

// analyze runs outside the lock so Cancel and State stay responsive.
func (w *Workflow) analyze(ctx context.Context, image []byte, token string) (*model.PendingAnalysis, error) {
	if len(image) == 0 {
		return nil, validation.ErrImageDecode
	}

	upload, err := validation.FitImage(image, w.cfg.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	result, err := w.analyzer.Analyze(ctx, upload, token)
	if err != nil {
		return nil, err
	}

	preview, err := w.cfg.Preview(image)
	if err != nil {
		return nil, errors.Join(validation.ErrImageDecode, err)
	}

	// The blob is stored as <id>.jpg, so other formats keep the converted upload.
	stored := image
	if !validation.IsJPEG(image) {
		stored = upload
	}

	return &model.PendingAnalysis{
		Image:         stored,
		Preview:       preview,
		Description:   result.Description,
		Calories:      result.Calories,
		Carbohydrates: result.CarbohydratesGrams,
		Protein:       result.ProteinGrams,
		Confidence:    model.ParseConfidence(result.Confidence),
	}, nil
}

// Edit changes fields of the pending analysis in place.
func (w *Workflow) Edit(changes Changes) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Status != StatusPendingConfirmation {
		return ErrNoPendingAnalysis
	}

	p := w.state.Pending.Clone()
	if changes.Description != nil {
		p.Description = *changes.Description
	}
	if changes.Calories != nil {
		p.Calories = *changes.Calories
	}
	if changes.Carbohydrates != nil {
		p.Carbohydrates = *changes.Carbohydrates
	}
	if changes.Protein != nil {
		p.Protein = *changes.Protein
	}

	err := validation.ValidateMacros(p.Calories, p.Carbohydrates, p.Protein)
	if err != nil {
		return err
	}

	w.state.Pending = p
	w.notifyLocked()
	return nil
}

// Confirm commits the pending analysis as a new meal and returns to Idle. A
// rejected record leaves the pending analysis in place.
func (w *Workflow) Confirm() (*model.MealRecord, *service.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Status != StatusPendingConfirmation {
		return nil, nil, ErrNoPendingAnalysis
	}

	p := w.state.Pending
	meal := &model.MealRecord{
		ID:                   w.cfg.NewID(),
		Date:                 w.cfg.Now(),
		Description:          p.Description,
		CaloriesInKcal:       p.Calories,
		CarbohydratesInGrams: p.Carbohydrates,
		ProteinInGrams:       p.Protein,
		Image:                p.Image,
	}

	report, err := w.recorder.Add(meal)
	if err != nil {
		return nil, nil, err
	}
	if report.Degraded() {
		slog.Warn("meal saved with degraded storage", "meal_id", meal.ID)
	}

	w.setLocked(State{Status: StatusIdle})
	return meal.Clone(), report, nil
}

// Cancel discards whatever is in progress or pending and returns to Idle. An
// in-flight pipeline call is cancelled and its result dropped if it still arrives.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Status == StatusIdle {
		return
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.generation++
	w.setLocked(State{Status: StatusIdle})
}

// ClearError returns a failed workflow to Idle.
func (w *Workflow) ClearError() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Status != StatusFailed {
		return
	}
	w.setLocked(State{Status: StatusIdle})
}

// Subscribe returns a channel that receives the current state and then every
// change. Slow readers only see the latest state. Call the returned func to
// stop receiving; it closes the channel.
func (w *Workflow) Subscribe() (<-chan State, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSub
	w.nextSub++
	ch := make(chan State, 1)
	ch <- w.snapshotLocked()
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs, id)
			close(ch)
		})
	}
}

func (w *Workflow) setLocked(s State) {
	w.state = s
	metrics.RecordTransition(string(s.Status))
	slog.Debug("workflow state changed", "status", s.Status)
	w.notifyLocked()
}

func (w *Workflow) notifyLocked() {
	s := w.snapshotLocked()
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func (w *Workflow) snapshotLocked() State {
	s := w.state
	if s.Pending != nil {
		s.Pending = s.Pending.Clone()
	}
	return s
}
