// Package devserver is a local stand-in for the remote food analysis service.
// It speaks the same three-endpoint contract and returns a fixed estimate.
package devserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kingst/foodlog/internal/model"
)

const (
	uploadTTL      = 10 * time.Minute
	maxUploadBytes = 20 << 20
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// DefaultEstimate is returned for every uploaded image unless configured otherwise.
var DefaultEstimate = model.AnalysisResult{
	Calories:           450,
	CarbohydratesGrams: 40,
	ProteinGrams:       20,
	Description:        "Grilled chicken salad",
	Confidence:         string(model.ConfidenceHigh),
}

type Config struct {
	// Secret signs upload URLs.
	Secret string
	// Tokens lists accepted bearer tokens. Empty accepts any non-empty token.
	Tokens []string
	// PublicURL is the base for issued upload URLs. Defaults to the request host.
	PublicURL string
	Estimate  *model.AnalysisResult
	Now       func() time.Time
}

type uploadClaims struct {
	ImageID string `json:"image_id"`
	jwt.RegisteredClaims
}

type Server struct {
	cfg Config

	mu      sync.Mutex
	uploads map[string][]byte
}

func New(cfg Config) *Server {
	if cfg.Estimate == nil {
		estimate := DefaultEstimate
		cfg.Estimate = &estimate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg, uploads: make(map[string][]byte)}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/food/upload_url", s.requireBearer(s.uploadURL)).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/upload/{image_id}", s.upload).Methods(http.MethodPut)
	r.HandleFunc("/v1/food/analyze/{image_id}", s.requireBearer(s.analyze)).Methods(http.MethodGet)
	return r
}

// Uploaded returns the bytes stored for imageID.
func (s *Server) Uploaded(imageID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[imageID]
	return data, ok
}

func (s *Server) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !s.acceptToken(strings.TrimSpace(token)) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) acceptToken(token string) bool {
	if token == "" {
		return false
	}
	if len(s.cfg.Tokens) == 0 {
		return true
	}
	for _, t := range s.cfg.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

func (s *Server) uploadURL(w http.ResponseWriter, r *http.Request) {
	imageID := uuid.NewString() + ".jpg"
	now := s.cfg.Now()

	claims := uploadClaims{
		ImageID: imageID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(uploadTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		slog.Error("failed to sign upload url", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create upload URL")
		return
	}

	target := fmt.Sprintf("%s/upload/%s?token=%s", s.baseURL(r), url.PathEscape(imageID), url.QueryEscape(signed))
	slog.Info("issued upload slot", "image_id", imageID)

	writeJSON(w, http.StatusOK, model.UploadSlot{UploadURL: target, ImageID: imageID})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["image_id"]

	err := s.verifyUpload(r.URL.Query().Get("token"), imageID)
	if err != nil {
		slog.Warn("rejected upload", "image_id", imageID, "error", err)
		writeError(w, http.StatusForbidden, "Invalid or expired upload URL")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}
	if !bytes.HasPrefix(data, jpegMagic) {
		writeError(w, http.StatusBadRequest, "Image must be a JPEG")
		return
	}

	s.mu.Lock()
	s.uploads[imageID] = data
	s.mu.Unlock()

	slog.Info("image uploaded", "image_id", imageID, "bytes", len(data))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) verifyUpload(signed, imageID string) error {
	if signed == "" {
		return errors.New("missing token")
	}

	claims := &uploadClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.cfg.Now))
	if err != nil {
		return err
	}

	if claims.ImageID != imageID {
		return errors.New("token issued for another image")
	}
	return nil
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["image_id"]

	_, ok := s.Uploaded(imageID)
	if !ok {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	result := *s.cfg.Estimate
	result.ImageID = imageID
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
