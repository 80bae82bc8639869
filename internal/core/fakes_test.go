package core

import (
	"context"
	"sync"

	"triage-chatbot/internal/llm"
	"triage-chatbot/internal/symptoms"
	"triage-chatbot/internal/training"
)

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f.CompleteJSON(ctx, system, prompt)
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

type fakeChat struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (c *fakeChat) Send(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type fakeChats struct {
	mu    sync.Mutex
	made  []*fakeChat
	reply string
	err   error
}

func (f *fakeChats) NewChat() llm.ChatSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeChat{reply: f.reply, err: f.err}
	f.made = append(f.made, c)
	return c
}

type fakeVision struct {
	description string
	candidates  string
	err         error
	calls       int
}

func (v *fakeVision) AnalyzeImage(context.Context, []byte) (string, string, error) {
	v.calls++
	return v.description, v.candidates, v.err
}

type fakePredictor struct {
	mu    sync.Mutex
	label string
	err   error
	calls int
	last  []int
}

func (p *fakePredictor) Predict(_ context.Context, features []int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = features
	return p.label, p.err
}

type fakeTable struct {
	mu      sync.Mutex
	columns []string
	rows    []training.Row
	err     error
}

func newFakeTable() *fakeTable {
	return &fakeTable{columns: symptoms.Columns()}
}

func (t *fakeTable) Columns(context.Context) ([]string, error) {
	return t.columns, nil
}

func (t *fakeTable) Append(_ context.Context, row training.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *fakeTable) Rows(context.Context) ([]training.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]training.Row(nil), t.rows...), t.err
}

func (t *fakeTable) appended() []training.Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]training.Row(nil), t.rows...)
}
