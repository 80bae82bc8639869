package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"triage-chatbot/internal/llm"
	"triage-chatbot/internal/metrics"
	"triage-chatbot/internal/session"
	"triage-chatbot/internal/training"
	"triage-chatbot/pkg"
	"triage-chatbot/pkg/logging"
)

// firstTurnThreshold is the number of prior messages below which a turn is
// treated as the opening of the consultation.
const firstTurnThreshold = 2

const (
	kindFirst    = "first"
	kindFollowUp = "follow_up"
)

// RowAppender persists training rows.
type RowAppender interface {
	Append(ctx context.Context, row training.Row) error
}

// TurnService drives one user message through the diagnosis pipeline.  On
// the first turn of a session it extracts symptoms, classifies, reconciles
// against the image candidates and logs a training row; later turns only
// ask the chat model using the stored diagnosis.
type TurnService struct {
	Sessions   *session.Store
	Chats      llm.ChatFactory
	Vision     llm.ImageAnalyzer
	Extractor  *Extractor
	Classifier *Classifier
	Training   RowAppender
	Logger     *zap.Logger
	Metrics    *metrics.TriageMetrics

	tracer trace.Tracer
}

// NewTurnService wires a TurnService.  vision may be nil, in which case
// attached images are stored but never analysed.
func NewTurnService(
	sessions *session.Store,
	chats llm.ChatFactory,
	vision llm.ImageAnalyzer,
	extractor *Extractor,
	classifier *Classifier,
	trainingLog RowAppender,
	logger *zap.Logger,
	m *metrics.TriageMetrics,
) *TurnService {
	return &TurnService{
		Sessions:   sessions,
		Chats:      chats,
		Vision:     vision,
		Extractor:  extractor,
		Classifier: classifier,
		Training:   trainingLog,
		Logger:     logging.OrNop(logger),
		Metrics:    m,
		tracer:     otel.Tracer("triage.internal.core.turn"),
	}
}

// Respond processes one turn while holding the session's turn lock.
func (s *TurnService) Respond(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	unlock := s.Sessions.Lock(req.SessionID)
	defer unlock()
	return s.Process(ctx, req)
}

// Process runs one turn.  The caller must hold the session's turn lock (see
// session.Store.Lock).  The user message is recorded before processing and
// the reply after it; on failure the caller is expected to record the error
// text as the assistant message before releasing the lock.
func (s *TurnService) Process(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	ctx, span := s.tracer.Start(ctx, "triage.turn")
	defer span.End()

	start := time.Now()
	first := len(s.Sessions.Conversation(req.SessionID)) < firstTurnThreshold
	kind := kindFollowUp
	if first {
		kind = kindFirst
	}
	span.SetAttributes(attribute.String("triage.turn_kind", kind))
	s.Sessions.AddMessage(req.SessionID, pkg.RoleUser, req.Text)

	resp, err := s.respond(ctx, req, first)
	s.Metrics.ObserveTurn(kind, err == nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.Logger.Error("turn failed",
			zap.String("session_id", req.SessionID),
			zap.String("kind", kind),
			zap.Error(err))
		return nil, errors.Wrap(err, "error in turn processing")
	}

	s.Sessions.AddMessage(req.SessionID, pkg.RoleAssistant, resp.TreatmentInfo)
	return resp, nil
}

func (s *TurnService) respond(ctx context.Context, req pkg.TurnRequest, first bool) (*pkg.TurnResponse, error) {
	chat := s.ensureChat(req.SessionID)

	if err := s.analyzeImage(ctx, req); err != nil {
		return nil, err
	}
	state := s.Sessions.Context(req.SessionID)

	treatment, err := chat.Send(ctx, buildPrompt(first, state, req.Text))
	if err != nil {
		return nil, errors.Wrap(err, "chat model")
	}
	if !first {
		return &pkg.TurnResponse{TreatmentInfo: treatment}, nil
	}

	diagnosis, err := s.diagnose(ctx, req.SessionID, req.Text, state)
	if err != nil {
		return nil, err
	}
	resp := &pkg.TurnResponse{PredictedDisease: &diagnosis, TreatmentInfo: treatment}
	if state.ImageDescription != "" {
		desc := state.ImageDescription
		resp.ImageDescription = &desc
	}
	return resp, nil
}

// ensureChat returns the session's chat handle, opening it on first use.
// The handle lives until the session is cleared or the chat is reset.
func (s *TurnService) ensureChat(sessionID string) llm.ChatSession {
	var chat llm.ChatSession
	s.Sessions.Update(sessionID, func(c *session.Context) {
		if c.ChatHandle == nil {
			c.ChatHandle = s.Chats.NewChat()
		}
		chat = c.ChatHandle
	})
	return chat
}

// analyzeImage stores an attached image and, when no analysis is cached
// yet, runs the vision model once.  The analysis is kept for the rest of the
// session even if another image arrives.  A failed analysis is logged and
// retried on the next turn.
func (s *TurnService) analyzeImage(ctx context.Context, req pkg.TurnRequest) error {
	if req.Image != "" {
		if _, err := base64.StdEncoding.DecodeString(req.Image); err != nil {
			return errors.Wrap(ErrInvalidImage, err.Error())
		}
		s.Sessions.Update(req.SessionID, func(c *session.Context) {
			c.Base64Image = req.Image
			c.ImageUploaded = true
		})
	}

	state := s.Sessions.Context(req.SessionID)
	if state.ImageDescription != "" || state.Base64Image == "" || s.Vision == nil {
		return nil
	}
	image, err := base64.StdEncoding.DecodeString(state.Base64Image)
	if err != nil {
		return errors.Wrap(ErrInvalidImage, err.Error())
	}

	ctx, span := s.tracer.Start(ctx, "triage.analyze_image")
	defer span.End()

	description, candidates, err := s.Vision.AnalyzeImage(ctx, image)
	s.Metrics.ObserveImageAnalysis(err == nil)
	if err != nil {
		span.RecordError(err)
		s.Logger.Warn("image analysis failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil
	}
	list := SplitCandidates(candidates)
	s.Sessions.Update(req.SessionID, func(c *session.Context) {
		c.ImageDescription = strings.TrimSpace(description)
		c.ImageDiseaseList = list
	})
	return nil
}

// diagnose runs extraction, classification and reconciliation, stores the
// result as the session's last diagnosis and logs the training row.
func (s *TurnService) diagnose(ctx context.Context, sessionID, text string, state session.Context) (pkg.Diagnosis, error) {
	ctx, span := s.tracer.Start(ctx, "triage.diagnose")
	defer span.End()

	combined := text
	if state.ImageDescription != "" {
		combined = fmt.Sprintf(CombinedSymptomText, state.ImageDescription, text)
	}
	vector := s.Extractor.Extract(ctx, combined)

	predicted, err := s.Classifier.Predict(ctx, vector)
	if err != nil {
		span.RecordError(err)
		return pkg.Diagnosis{}, errors.Wrap(err, "classifier")
	}

	diagnosis := Reconcile(predicted, state.ImageDiseaseList)
	outcome := "confirmed"
	if diagnosis.Kind == pkg.DiagnosisCandidates {
		outcome = "candidates"
	}
	s.Metrics.ObserveReconcile(outcome)
	span.SetAttributes(attribute.String("triage.reconcile_outcome", outcome))

	s.Sessions.Update(sessionID, func(c *session.Context) { c.LastDiagnosis = diagnosis })

	row := training.Row{Features: vector, Label: CleanLabel(diagnosis.Primary())}
	err = s.Training.Append(ctx, row)
	s.Metrics.ObserveTrainingAppend(err == nil)
	if err != nil {
		s.Logger.Error("failed to append training row",
			zap.String("session_id", sessionID),
			zap.String("label", row.Label),
			zap.Error(err))
	}
	return diagnosis, nil
}

func buildPrompt(first bool, state session.Context, text string) string {
	switch {
	case first && state.ImageDescription != "":
		return fmt.Sprintf(FirstTurnImagePrompt, state.ImageDescription, text)
	case first:
		return fmt.Sprintf(FirstTurnPrompt, text)
	default:
		return fmt.Sprintf(FollowUpPrompt, state.LastDiagnosis.String(), text)
	}
}
