package model

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps a remote label onto a known level; anything unrecognised is low.
func ParseConfidence(label string) Confidence {
	switch Confidence(label) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// UploadSlot is a one-time upload location issued by the remote service.
type UploadSlot struct {
	UploadURL string `json:"upload_url"`
	ImageID   string `json:"image_id"`
}

// AnalysisResult is the remote estimate for one uploaded image.
type AnalysisResult struct {
	Calories           int    `json:"calories"`
	CarbohydratesGrams int    `json:"carbohydrates_grams"`
	ProteinGrams       int    `json:"protein_grams"`
	Description        string `json:"description"`
	ImageID            string `json:"image_id"`
	Confidence         string `json:"confidence"`
}

// PendingAnalysis is an unconfirmed estimate awaiting the user's edits.
// It lives only inside the analysis workflow and is never persisted.
type PendingAnalysis struct {
	Image         []byte     `json:"-"`
	Preview       []byte     `json:"-"`
	Description   string     `json:"description"`
	Calories      int        `json:"calories"`
	Carbohydrates int        `json:"carbohydrates"`
	Protein       int        `json:"protein"`
	Confidence    Confidence `json:"confidence"`
}

// Clone returns a deep copy for state snapshots.
func (p *PendingAnalysis) Clone() *PendingAnalysis {
	c := *p
	c.Image = append([]byte(nil), p.Image...)
	c.Preview = append([]byte(nil), p.Preview...)
	return &c
}
