package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-chatbot/internal/symptoms"
	"triage-chatbot/internal/training"
)

func zeros() []int { return make([]int, symptoms.Len()) }

func TestClassifierRejectsBrokenVectors(t *testing.T) {
	p := &fakePredictor{label: "Flu"}
	c, err := NewClassifier(context.Background(), newFakeTable(), p)
	require.NoError(t, err)

	nonBinary := zeros()
	nonBinary[3] = 2

	tests := []struct {
		name   string
		vector []int
	}{
		{"nil", nil},
		{"too short", zeros()[:10]},
		{"too long", append(zeros(), 0)},
		{"non binary", nonBinary},
		{"negative", append(zeros()[:symptoms.Len()-1], -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Predict(context.Background(), tt.vector)
			assert.ErrorIs(t, err, ErrContractViolation)
		})
	}
	assert.Zero(t, p.calls)
}

func TestClassifierPredicts(t *testing.T) {
	p := &fakePredictor{label: "Common Cold"}
	c, err := NewClassifier(context.Background(), newFakeTable(), p)
	require.NoError(t, err)
	assert.Equal(t, symptoms.Len(), c.Features())

	v := zeros()
	v[symptoms.Index("cough")] = 1
	label, err := c.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "Common Cold", label)
	assert.Equal(t, v, p.last)
}

func TestClassifierWrapsPredictorFailure(t *testing.T) {
	p := &fakePredictor{err: errors.New("model offline")}
	c, err := NewClassifier(context.Background(), newFakeTable(), p)
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), zeros())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContractViolation)
}

func TestNewClassifierChecksTableColumns(t *testing.T) {
	table := newFakeTable()
	cols := symptoms.Columns()
	cols[0], cols[1] = cols[1], cols[0]
	table.columns = cols

	_, err := NewClassifier(context.Background(), table, &fakePredictor{})
	assert.Error(t, err)
}

func TestHTTPPredictor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Features, symptoms.Len())
		_ = json.NewEncoder(w).Encode(predictResponse{Prognosis: "Psoriasis"})
	}))
	defer srv.Close()

	label, err := NewHTTPPredictor(srv.URL).Predict(context.Background(), zeros())
	require.NoError(t, err)
	assert.Equal(t, "Psoriasis", label)
}

func TestHTTPPredictorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPPredictor(srv.URL).Predict(context.Background(), zeros())
	assert.ErrorContains(t, err, "503")
	_, err = NewHTTPPredictor(srv.URL+"/empty").Predict(context.Background(), zeros())
	assert.Error(t, err)
}

func TestNearestPredictor(t *testing.T) {
	table := newFakeTable()
	rash, cough := zeros(), zeros()
	rash[symptoms.Index("skin_rash")] = 1
	rash[symptoms.Index("itching")] = 1
	cough[symptoms.Index("cough")] = 1
	cough[symptoms.Index("high_fever")] = 1
	table.rows = []training.Row{
		{Features: rash, Label: "Fungal infection"},
		{Features: cough, Label: "Pneumonia"},
	}
	p := &NearestPredictor{Rows: table}

	query := zeros()
	query[symptoms.Index("cough")] = 1
	label, err := p.Predict(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", label)

	// equidistant: the earliest row wins
	label, err = p.Predict(context.Background(), zeros())
	require.NoError(t, err)
	assert.Equal(t, "Fungal infection", label)

	_, err = (&NearestPredictor{Rows: newFakeTable()}).Predict(context.Background(), zeros())
	assert.ErrorIs(t, err, ErrNoTrainingRows)
}
