package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"triage-chatbot/internal/symptoms"
	"triage-chatbot/internal/training"
)

// Predictor is the trained disease model.  It receives a validated binary
// vector in feature order.
type Predictor interface {
	Predict(ctx context.Context, features []int) (string, error)
}

// ColumnSource exposes the header of the training table.
type ColumnSource interface {
	Columns(ctx context.Context) ([]string, error)
}

// RowSource exposes the examples of the training table.
type RowSource interface {
	Rows(ctx context.Context) ([]training.Row, error)
}

// Classifier guards the predictor with the feature contract.  The feature
// order is read from the training table when the classifier is built.
type Classifier struct {
	features  []string
	predictor Predictor
}

// NewClassifier loads the feature columns from table and checks them
// against the symptom vocabulary.
func NewClassifier(ctx context.Context, table ColumnSource, p Predictor) (*Classifier, error) {
	cols, err := table.Columns(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load feature columns")
	}
	if n := len(cols); n > 0 && cols[n-1] == symptoms.PrognosisColumn {
		cols = cols[:n-1]
	}
	if err := symptoms.CheckColumns(cols); err != nil {
		return nil, err
	}
	return &Classifier{features: cols, predictor: p}, nil
}

// Features returns the number of features the classifier expects.
func (c *Classifier) Features() int { return len(c.features) }

// Predict validates the vector and asks the predictor for a label.
// Malformed vectors fail with ErrContractViolation without reaching the
// predictor.
func (c *Classifier) Predict(ctx context.Context, vector []int) (string, error) {
	if vector == nil {
		return "", errors.Wrap(ErrContractViolation, "symptom vector is nil")
	}
	if len(vector) != len(c.features) {
		return "", errors.Wrapf(ErrContractViolation, "expected %d features, got %d", len(c.features), len(vector))
	}
	for i, v := range vector {
		if v != 0 && v != 1 {
			return "", errors.Wrapf(ErrContractViolation, "feature %s has value %d, want 0 or 1", c.features[i], v)
		}
	}

	label, err := c.predictor.Predict(ctx, vector)
	if err != nil {
		return "", errors.Wrap(err, "prediction failed")
	}
	return label, nil
}

// HTTPPredictor calls a model inference endpoint.  The request body is
// {"features": [...]} and the response body {"prognosis": "..."}.
type HTTPPredictor struct {
	URL    string
	Client *http.Client
}

// NewHTTPPredictor constructs an HTTPPredictor with a bounded client timeout.
func NewHTTPPredictor(url string) *HTTPPredictor {
	return &HTTPPredictor{URL: url, Client: &http.Client{Timeout: 30 * time.Second}}
}

type predictRequest struct {
	Features []int `json:"features"`
}

type predictResponse struct {
	Prognosis string `json:"prognosis"`
}

func (p *HTTPPredictor) Predict(ctx context.Context, features []int) (string, error) {
	body, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("predictor returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode predictor response: %w", err)
	}
	if out.Prognosis == "" {
		return "", errors.New("predictor returned an empty prognosis")
	}
	return out.Prognosis, nil
}

// NearestPredictor labels a vector with the prognosis of the closest stored
// training row by Hamming distance.  Ties go to the earliest row.  It is a
// stand-in for the trained model when no inference endpoint is configured.
type NearestPredictor struct {
	Rows RowSource
}

func (p *NearestPredictor) Predict(ctx context.Context, features []int) (string, error) {
	rows, err := p.Rows.Rows(ctx)
	if err != nil {
		return "", err
	}
	best, bestDist := "", -1
	for _, r := range rows {
		if r.Label == "" || len(r.Features) != len(features) {
			continue
		}
		d := 0
		for i, v := range r.Features {
			if v != features[i] {
				d++
			}
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = r.Label, d
		}
	}
	if bestDist < 0 {
		return "", ErrNoTrainingRows
	}
	return best, nil
}
