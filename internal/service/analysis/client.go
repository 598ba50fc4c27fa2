package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kingst/foodlog/internal/metrics"
	"github.com/kingst/foodlog/internal/model"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// Analyzer turns raw image bytes into a nutrition estimate.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, token string) (*model.AnalysisResult, error)
}

// Client runs the three-step remote sequence: upload slot, upload, analyze.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	slotMethod string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		slotMethod: http.MethodPost,
	}
}

// WithSlotMethod sets the HTTP method of the upload slot request. Some
// deployments only answer GET there. An empty method keeps POST.
func (c *Client) WithSlotMethod(method string) *Client {
	if method != "" {
		c.slotMethod = strings.ToUpper(method)
	}
	return c
}

// Analyze performs every step in order and stops at the first failure.
func (c *Client) Analyze(ctx context.Context, image []byte, token string) (*model.AnalysisResult, error) {
	slot, err := c.RequestUploadSlot(ctx, token)
	if err != nil {
		return nil, err
	}

	err = c.Upload(ctx, slot.UploadURL, image)
	if err != nil {
		return nil, err
	}

	result, err := c.RequestAnalysis(ctx, slot.ImageID, token)
	if err != nil {
		return nil, err
	}

	slog.Info("image analyzed",
		"image_id", slot.ImageID,
		"calories", result.Calories,
		"confidence", result.Confidence,
	)
	return result, nil
}

// RequestUploadSlot asks the service for a one-time upload location.
func (c *Client) RequestUploadSlot(ctx context.Context, token string) (slot *model.UploadSlot, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("upload_url", time.Since(start), err) }()

	req, err := c.newRequest(ctx, c.slotMethod, c.baseURL+"/v1/food/upload_url", nil)
	if err != nil {
		return nil, err
	}
	authorize(req, token)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized:
		return nil, ErrNotAuthenticated
	default:
		return nil, &UploadError{Reason: errorReason(body, "Unknown error")}
	}

	slot = &model.UploadSlot{}
	err = json.Unmarshal(body, slot)
	if err != nil || slot.UploadURL == "" || slot.ImageID == "" {
		return nil, &UploadError{Reason: "Invalid response"}
	}
	return slot, nil
}

// Upload writes the raw bytes to the slot location. The location carries its
// own authorisation, so no bearer token is sent.
func (c *Client) Upload(ctx context.Context, uploadURL string, image []byte) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("upload", time.Since(start), err) }()

	target, err := url.Parse(uploadURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return ErrInvalidRequestTarget
	}

	req, err := c.newRequest(ctx, http.MethodPut, target.String(), bytes.NewReader(image))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	status, _, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &UploadError{Reason: fmt.Sprintf("Upload returned status %d", status)}
	}
	return nil
}

// RequestAnalysis asks for the estimate of an uploaded image.
func (c *Client) RequestAnalysis(ctx context.Context, imageID, token string) (result *model.AnalysisResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep("analyze", time.Since(start), err) }()

	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/v1/food/analyze/"+url.PathEscape(imageID), nil)
	if err != nil {
		return nil, err
	}
	authorize(req, token)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized:
		return nil, ErrNotAuthenticated
	default:
		return nil, &AnalysisError{Reason: errorReason(body, "Analysis failed")}
	}

	result = &model.AnalysisResult{}
	err = json.Unmarshal(body, result)
	if err != nil {
		return nil, &AnalysisError{Reason: "Invalid response"}
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequestTarget, err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}

	slog.Debug("analysis service response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
	)
	return resp.StatusCode, body, nil
}

func authorize(req *http.Request, token string) {
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
}

// errorReason extracts the "error" field of a failure payload.
func errorReason(body []byte, fallback string) string {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	reason := gjson.GetBytes(body, "error")
	if reason.Type != gjson.String || reason.Str == "" {
		return fallback
	}
	return reason.Str
}
