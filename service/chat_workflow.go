package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"legaldoc-backend/chunker"
	"legaldoc-backend/llm"
	"legaldoc-backend/logger"
	"legaldoc-backend/models"
	"legaldoc-backend/session"
	"legaldoc-backend/tracer"
	"legaldoc-backend/vectorstore"
)

const (
	defaultChatTemperature  = 0.7
	defaultMaxMessageLength = 2000
)

// ChatTurnRequest is one chat turn. Document is nil when no document was
// uploaded with the turn.
type ChatTurnRequest struct {
	SessionID string
	Document  *string
	Message   string

	// DocumentArchive is where the uploaded original was archived, if anywhere
	DocumentArchive string
}

type chatState int

const (
	chatStart chatState = iota
	chatResolveSession
	chatIngest
	chatRespond
	chatDone
	chatFailed
)

func (s chatState) String() string {
	switch s {
	case chatStart:
		return "start"
	case chatResolveSession:
		return "resolve_session"
	case chatIngest:
		return "ingest"
	case chatRespond:
		return "respond"
	case chatDone:
		return "done"
	case chatFailed:
		return "failed"
	}
	return fmt.Sprintf("chatState(%d)", int(s))
}

// ChatWorkflow runs retrieval-augmented chat turns against session-scoped
// document stores
type ChatWorkflow struct {
	registry         *session.Registry
	validator        Validator
	chunker          *chunker.Chunker
	generator        llm.Generator
	log              logger.ILogger
	topK             int
	temperature      float32
	maxMessageLength int
	now              func() time.Time
}

// ChatOption is a functional option for ChatWorkflow
type ChatOption func(*ChatWorkflow)

// ChatWithRegistry sets the session registry
func ChatWithRegistry(r *session.Registry) ChatOption {
	return func(w *ChatWorkflow) {
		w.registry = r
	}
}

// ChatWithValidator sets the validator used on uploaded documents
func ChatWithValidator(v Validator) ChatOption {
	return func(w *ChatWorkflow) {
		w.validator = v
	}
}

// ChatWithChunker sets the chunker used on accepted documents
func ChatWithChunker(c *chunker.Chunker) ChatOption {
	return func(w *ChatWorkflow) {
		w.chunker = c
	}
}

// ChatWithGenerator sets the language model
func ChatWithGenerator(g llm.Generator) ChatOption {
	return func(w *ChatWorkflow) {
		w.generator = g
	}
}

// ChatWithLogger sets the logger
func ChatWithLogger(l logger.ILogger) ChatOption {
	return func(w *ChatWorkflow) {
		w.log = l
	}
}

// ChatWithTopK sets how many passages are retrieved per question
func ChatWithTopK(k int) ChatOption {
	return func(w *ChatWorkflow) {
		if k > 0 {
			w.topK = k
		}
	}
}

// ChatWithTemperature sets the sampling temperature for answers
func ChatWithTemperature(t float32) ChatOption {
	return func(w *ChatWorkflow) {
		w.temperature = t
	}
}

// ChatWithMaxMessageLength caps the message length in runes. n <= 0 disables the cap.
func ChatWithMaxMessageLength(n int) ChatOption {
	return func(w *ChatWorkflow) {
		w.maxMessageLength = n
	}
}

// ChatWithClock replaces time.Now for message timestamps
func ChatWithClock(now func() time.Time) ChatOption {
	return func(w *ChatWorkflow) {
		w.now = now
	}
}

// NewChatWorkflow creates a new chat workflow. Registry, validator and
// generator are required.
func NewChatWorkflow(opts ...ChatOption) (*ChatWorkflow, error) {
	w := &ChatWorkflow{
		log:              logger.NewNop(),
		topK:             vectorstore.DefaultTopK,
		temperature:      defaultChatTemperature,
		maxMessageLength: defaultMaxMessageLength,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.registry == nil {
		return nil, errors.New("chat workflow requires a session registry")
	}
	if w.validator == nil {
		return nil, errors.New("chat workflow requires a validator")
	}
	if w.generator == nil {
		return nil, errors.New("chat workflow requires a generator")
	}
	if w.chunker == nil {
		c, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
		if err != nil {
			return nil, err
		}
		w.chunker = c
	}
	return w, nil
}

// chatRun carries one turn through the state machine
type chatRun struct {
	req     ChatTurnRequest
	message string
	session *session.Session
	release func()
	result  models.ChatTurnResult
	err     error
}

// Run executes one chat turn. The session is held for the whole turn, so
// turns on the same session are serialized while different sessions run in
// parallel. Errors are ErrBadRequest or *ProcessingFailure.
func (w *ChatWorkflow) Run(ctx context.Context, req ChatTurnRequest) (*models.ChatTurnResult, error) {
	ctx, span := tracer.Tracer().Start(ctx, "ChatWorkflow.Run")
	defer span.End()

	run := &chatRun{req: req, message: strings.TrimSpace(req.Message)}
	defer func() {
		if run.release != nil {
			run.release()
		}
	}()

	state := chatStart
	for {
		switch state {
		case chatStart:
			if err := w.checkRequest(run); err != nil {
				w.log.Warn("chat", "rejected chat request", logger.Details(ctx, map[string]interface{}{
					"error": err,
				}))
				return nil, err
			}
			state = chatResolveSession

		case chatResolveSession:
			var next chatState
			ctx, next = w.resolveSession(ctx, run)
			state = next

		case chatIngest:
			state = w.ingest(ctx, run)

		case chatRespond:
			state = w.respond(ctx, run)

		case chatDone:
			span.SetAttributes(
				attribute.String("session.id", run.result.SessionID),
				attribute.Bool("chat.document_processed", run.result.DocumentProcessed),
			)
			w.log.Info("chat", "chat turn complete", logger.Details(ctx, map[string]interface{}{
				"document_processed": run.result.DocumentProcessed,
				"answered":           run.result.Response != "",
			}))
			result := run.result
			return &result, nil

		case chatFailed:
			span.RecordError(run.err)
			span.SetStatus(codes.Error, run.err.Error())
			if errors.Is(run.err, ErrBadRequest) {
				w.log.Warn("chat", "rejected chat request", logger.Details(ctx, map[string]interface{}{
					"error": run.err,
				}))
			} else {
				w.log.Error("chat", "chat turn failed", logger.Details(ctx, map[string]interface{}{
					"error": run.err,
				}))
			}
			return nil, run.err

		default:
			return nil, fmt.Errorf("unknown chat state %s", state)
		}
	}
}

func (w *ChatWorkflow) checkRequest(run *chatRun) error {
	if run.req.Document == nil && run.message == "" {
		return badRequest("either a document or a message is required")
	}
	if w.maxMessageLength > 0 && utf8.RuneCountInString(run.message) > w.maxMessageLength {
		return badRequest("message exceeds %d characters", w.maxMessageLength)
	}
	return nil
}

func (w *ChatWorkflow) resolveSession(ctx context.Context, run *chatRun) (context.Context, chatState) {
	stepCtx, span := startStep(ctx, chatResolveSession)
	defer span.End()

	s, release, err := w.registry.Acquire(stepCtx, run.req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSessionID) {
			run.err = badRequest("%v", err)
		} else {
			run.err = newFailure(ctx, StageSession, err)
		}
		return ctx, chatFailed
	}
	run.session = s
	run.release = release
	run.result.SessionID = s.ID

	ctx = logger.WithSessionID(ctx, s.ID)
	if run.req.Document != nil {
		return ctx, chatIngest
	}
	return ctx, chatRespond
}

func (w *ChatWorkflow) ingest(ctx context.Context, run *chatRun) chatState {
	ctx, span := startStep(ctx, chatIngest)
	defer span.End()

	verdict, err := w.validator.Validate(ctx, *run.req.Document)
	if err == nil && verdict == nil {
		err = errNoVerdict
	}
	if err != nil {
		run.err = newFailure(ctx, StageValidating, err)
		return chatFailed
	}
	if !verdict.IsLegal {
		// The store is left as it was and the message goes unanswered
		w.log.Info("chat", "uploaded document rejected", logger.Details(ctx, map[string]interface{}{
			"reason": verdict.Reason,
		}))
		run.result.Response = verdict.Reason
		if run.result.Response == "" {
			run.result.Response = DefaultRejectionReason
		}
		return chatDone
	}

	chunks := w.chunker.Split(*run.req.Document)
	if err := run.session.Store.Upsert(ctx, chunks); err != nil {
		run.err = newFailure(ctx, StageIngesting, err)
		return chatFailed
	}
	run.session.RecordDocument(run.req.DocumentArchive)
	span.SetAttributes(attribute.Int("ingest.chunks", len(chunks)))
	w.log.Info("chat", "document ingested", logger.Details(ctx, map[string]interface{}{
		"chunks": len(chunks),
	}))
	run.result.DocumentProcessed = true

	if run.message == "" {
		return chatDone
	}
	return chatRespond
}

func (w *ChatWorkflow) respond(ctx context.Context, run *chatRun) chatState {
	ctx, span := startStep(ctx, chatRespond)
	defer span.End()

	hits, err := run.session.Store.Search(ctx, run.message, w.topK)
	if err != nil {
		run.err = newFailure(ctx, StageResponding, err)
		return chatFailed
	}
	span.SetAttributes(attribute.Int("retrieval.hits", len(hits)))

	answer, err := w.generator.Generate(ctx, llm.GenerateRequest{
		Task:        "chat",
		System:      chatSystemPrompt,
		History:     run.session.History(),
		Prompt:      chatPrompt(hits, run.message),
		Temperature: w.temperature,
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		run.err = newFailure(ctx, StageResponding, err)
		return chatFailed
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		run.err = newFailure(ctx, StageResponding, llm.ErrEmptyResponse)
		return chatFailed
	}

	run.session.AppendTurn(run.message, answer, w.now())
	run.result.Response = answer
	return chatDone
}
