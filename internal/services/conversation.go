package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/assistant"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type SendInput struct {
	// ThreadID is optional; without it the user's latest thread is used or created.
	ThreadID *uuid.UUID
	Content  string
}

type TurnResult struct {
	Thread      *types.ChatThread  `json:"thread"`
	UserMessage *types.ChatMessage `json:"user_message,omitempty"`
	Reply       *types.ChatMessage `json:"reply"`
	RunID       string             `json:"run_id"`
}

// ConversationService sequences one conversational turn across the stores, the gateway and the poller.
type ConversationService interface {
	Send(ctx context.Context, userID uuid.UUID, in SendInput) (*TurnResult, error)
	// RetryReply generates a reply for the already persisted user message without storing it again.
	RetryReply(ctx context.Context, userID, threadID uuid.UUID) (*TurnResult, error)
	// Sync persists the reply of a run whose wait was abandoned, if it has since completed.
	Sync(ctx context.Context, userID, threadID uuid.UUID) (*types.ChatMessage, error)
	// PostAdminMessage stores a staff message; it is not forwarded to the assistant.
	PostAdminMessage(ctx context.Context, threadID uuid.UUID, content string) (*types.ChatMessage, error)
}

type conversationService struct {
	log      *logger.Logger
	threads  ThreadStore
	messages MessageStore
	gateway  assistant.Gateway
	poller   RunPoller
	notify   ChatNotifier
	metrics  *observability.Metrics
}

func NewConversationService(
	baseLog *logger.Logger,
	threads ThreadStore,
	messages MessageStore,
	gateway assistant.Gateway,
	poller RunPoller,
	notify ChatNotifier,
	metrics *observability.Metrics,
) ConversationService {
	return &conversationService{
		log:      baseLog.With("service", "ConversationService"),
		threads:  threads,
		messages: messages,
		gateway:  gateway,
		poller:   poller,
		notify:   notify,
		metrics:  metrics,
	}
}

func (s *conversationService) Send(ctx context.Context, userID uuid.UUID, in SendInput) (*TurnResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, s.fail(userID, uuid.Nil, turnFailed(StageValidate, apierr.Validation("message content is empty")))
	}

	// Idle -> ThreadReady
	var (
		thread *types.ChatThread
		err    error
	)
	if in.ThreadID != nil && *in.ThreadID != uuid.Nil {
		thread, err = s.threads.Get(ctx, *in.ThreadID, userID)
	} else {
		thread, err = s.threads.GetOrCreate(ctx, userID)
	}
	if err != nil {
		return nil, s.fail(userID, uuid.Nil, turnFailed(StageThread, err))
	}

	// Settle any abandoned run before deciding the thread is busy.
	if thread.ActiveRunID != "" {
		if _, err := s.reconcile(ctx, userID, thread); err != nil {
			return nil, s.fail(userID, thread.ID, turnFailed(StageStartRun, err))
		}
	}
	if err := s.ensureIdle(ctx, thread); err != nil {
		return nil, s.fail(userID, thread.ID, turnFailed(StageStartRun, err))
	}

	// ThreadReady -> MessageSent: local echo first, then forward.
	userMsg, err := s.messages.Append(ctx, thread.ID, chat.RoleUser, content)
	if err != nil {
		return nil, s.fail(userID, thread.ID, turnFailed(StagePersistUser, err))
	}
	s.touch(ctx, userID, thread, userMsg)
	if s.notify != nil {
		s.notify.MessageCreated(userID, thread.ID, userMsg)
	}

	if _, err := s.gateway.SendMessage(ctx, thread.ExternalID, userMsg.Content); err != nil {
		if markErr := s.threads.SetUndelivered(ctx, userID, thread.ID, &userMsg.ID); markErr != nil {
			s.log.Warn("Failed to mark message undelivered", "thread_id", thread.ID, "message_id", userMsg.ID, "error", markErr)
		}
		return nil, s.fail(userID, thread.ID, replyFailed(StageSend, thread, userMsg, err))
	}
	if thread.UndeliveredMessageID != nil {
		// A newer message supersedes the one that never reached the assistant.
		if err := s.threads.SetUndelivered(ctx, userID, thread.ID, nil); err != nil {
			s.log.Warn("Failed to clear undelivered marker", "thread_id", thread.ID, "error", err)
		}
		thread.UndeliveredMessageID = nil
	}

	return s.runReply(ctx, userID, thread, userMsg)
}

func (s *conversationService) RetryReply(ctx context.Context, userID, threadID uuid.UUID) (*TurnResult, error) {
	thread, err := s.threads.Get(ctx, threadID, userID)
	if err != nil {
		return nil, s.fail(userID, uuid.Nil, turnFailed(StageThread, err))
	}

	if thread.ActiveRunID != "" {
		reply, err := s.reconcile(ctx, userID, thread)
		if err != nil {
			return nil, s.fail(userID, thread.ID, turnFailed(StageStartRun, err))
		}
		if reply != nil {
			// The earlier run finished while nobody was waiting.
			s.metrics.IncTurn("ok")
			return &TurnResult{Thread: thread, Reply: reply, RunID: reply.RemoteRunID}, nil
		}
	}

	last, err := s.messages.Last(ctx, thread.ID)
	if err != nil {
		return nil, s.fail(userID, thread.ID, turnFailed(StageThread, err))
	}
	if last == nil || last.Role != chat.RoleUser {
		return nil, s.fail(userID, thread.ID, turnFailed(StageValidate, apierr.Validation("no user message is waiting for a reply")))
	}

	if err := s.ensureIdle(ctx, thread); err != nil {
		return nil, s.fail(userID, thread.ID, replyFailed(StageStartRun, thread, last, err))
	}

	if thread.UndeliveredMessageID != nil {
		undelivered, err := s.messages.Get(ctx, thread.ID, *thread.UndeliveredMessageID)
		if err != nil {
			return nil, s.fail(userID, thread.ID, replyFailed(StageSend, thread, last, err))
		}
		if _, err := s.gateway.SendMessage(ctx, thread.ExternalID, undelivered.Content); err != nil {
			return nil, s.fail(userID, thread.ID, replyFailed(StageSend, thread, undelivered, err))
		}
		if err := s.threads.SetUndelivered(ctx, userID, thread.ID, nil); err != nil {
			s.log.Warn("Failed to clear undelivered marker", "thread_id", thread.ID, "error", err)
		}
		thread.UndeliveredMessageID = nil
	}

	return s.runReply(ctx, userID, thread, last)
}

func (s *conversationService) Sync(ctx context.Context, userID, threadID uuid.UUID) (*types.ChatMessage, error) {
	thread, err := s.threads.Get(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	if thread.ActiveRunID == "" {
		return nil, nil
	}
	reply, err := s.reconcile(ctx, userID, thread)
	if errors.Is(err, apierr.ErrBusy) {
		return nil, nil
	}
	return reply, err
}

func (s *conversationService) PostAdminMessage(ctx context.Context, threadID uuid.UUID, content string) (*types.ChatMessage, error) {
	thread, err := s.threads.Lookup(ctx, threadID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.Append(ctx, thread.ID, chat.RoleAdmin, content)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, thread.UserID, thread, msg)
	if s.notify != nil {
		s.notify.MessageCreated(thread.UserID, thread.ID, msg)
	}
	s.log.Info("Staff message posted", "thread_id", thread.ID, "message_id", msg.ID)
	return msg, nil
}

// runReply covers MessageSent -> RunStarted -> RunPolling -> ReplyExtracted -> Persisted.
func (s *conversationService) runReply(ctx context.Context, userID uuid.UUID, thread *types.ChatThread, userMsg *types.ChatMessage) (*TurnResult, error) {
	run, err := s.gateway.StartRun(ctx, thread.ExternalID)
	if err != nil {
		if errors.Is(err, apierr.ErrRunActive) {
			err = fmt.Errorf("%w: %w", apierr.ErrBusy, err)
		}
		return nil, s.fail(userID, thread.ID, replyFailed(StageStartRun, thread, userMsg, err))
	}
	if err := s.threads.SetActiveRun(ctx, userID, thread.ID, run.ID); err != nil {
		s.log.Warn("Failed to record active run", "thread_id", thread.ID, "run_id", run.ID, "error", err)
	}
	thread.ActiveRunID = run.ID
	s.log.Info("Run started", "thread_id", thread.ID, "run_id", run.ID)

	if _, err := s.poller.Wait(ctx, thread.ExternalID, run.ID); err != nil {
		var failed *apierr.RunFailedError
		if errors.As(err, &failed) {
			s.clearActiveRun(ctx, userID, thread)
		}
		// Timeouts and abandoned waits keep the marker so Sync can pick the reply up later.
		return nil, s.fail(userID, thread.ID, replyFailed(StagePoll, thread, userMsg, err))
	}

	reply, err := s.persistReply(ctx, userID, thread, run.ID)
	if err != nil {
		stage := StagePersistAsst
		var empty *apierr.EmptyReplyError
		var remote *apierr.RemoteServiceError
		if errors.As(err, &empty) || (errors.As(err, &remote) && remote.Service == "assistant") {
			stage = StageExtract
		}
		return nil, s.fail(userID, thread.ID, replyFailed(stage, thread, userMsg, err))
	}

	s.metrics.IncTurn("ok")
	return &TurnResult{Thread: thread, UserMessage: userMsg, Reply: reply, RunID: run.ID}, nil
}

// reconcile settles thread.ActiveRunID: a still-running run is ErrBusy, a completed one is
// persisted and returned, a failed one is cleared.
func (s *conversationService) reconcile(ctx context.Context, userID uuid.UUID, thread *types.ChatThread) (*types.ChatMessage, error) {
	runID := thread.ActiveRunID
	run, err := s.gateway.GetRun(ctx, thread.ExternalID, runID)
	if err != nil {
		return nil, err
	}
	switch {
	case run.Status == chat.RunCompleted:
		reply, err := s.persistReply(ctx, userID, thread, runID)
		var empty *apierr.EmptyReplyError
		if errors.As(err, &empty) {
			s.log.Warn("Abandoned run completed without text", "thread_id", thread.ID, "run_id", runID)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("Recovered reply of abandoned run", "thread_id", thread.ID, "run_id", runID)
		return reply, nil
	case run.Status.Terminal():
		s.clearActiveRun(ctx, userID, thread)
		return nil, nil
	default:
		return nil, apierr.ErrBusy
	}
}

// persistReply extracts and stores the reply of a completed run, then clears the marker and bumps the thread.
func (s *conversationService) persistReply(ctx context.Context, userID uuid.UUID, thread *types.ChatThread, runID string) (*types.ChatMessage, error) {
	text, err := s.gateway.ExtractReply(ctx, thread.ExternalID, runID)
	if err != nil {
		var empty *apierr.EmptyReplyError
		if errors.As(err, &empty) {
			s.clearActiveRun(ctx, userID, thread)
		}
		return nil, err
	}
	reply, err := s.messages.AppendReply(ctx, thread.ID, text, runID)
	if err != nil {
		return nil, err
	}
	s.clearActiveRun(ctx, userID, thread)
	s.touch(ctx, userID, thread, reply)
	if s.notify != nil {
		s.notify.MessageCreated(userID, thread.ID, reply)
	}
	return reply, nil
}

// ensureIdle asks the remote service whether a run is still going on the thread.
func (s *conversationService) ensureIdle(ctx context.Context, thread *types.ChatThread) error {
	active, err := s.gateway.ActiveRun(ctx, thread.ExternalID)
	if err != nil {
		return err
	}
	if active != nil {
		s.log.Info("Thread busy", "thread_id", thread.ID, "run_id", active.ID, "status", active.Status)
		return apierr.ErrBusy
	}
	return nil
}

func (s *conversationService) clearActiveRun(ctx context.Context, userID uuid.UUID, thread *types.ChatThread) {
	if thread.ActiveRunID == "" {
		return
	}
	if err := s.threads.SetActiveRun(ctx, userID, thread.ID, ""); err != nil {
		s.log.Warn("Failed to clear active run", "thread_id", thread.ID, "error", err)
		return
	}
	thread.ActiveRunID = ""
}

func (s *conversationService) touch(ctx context.Context, userID uuid.UUID, thread *types.ChatThread, msg *types.ChatMessage) {
	if err := s.threads.Touch(ctx, userID, thread.ID, msg.CreatedAt); err != nil {
		s.log.Warn("Failed to touch thread", "thread_id", thread.ID, "error", err)
		return
	}
	if msg.CreatedAt.After(thread.UpdatedAt) {
		thread.UpdatedAt = msg.CreatedAt
	}
	thread.LastMessageAt = msg.CreatedAt
}

func (s *conversationService) fail(userID, threadID uuid.UUID, terr *TurnError) error {
	s.metrics.IncTurn(turnOutcome(terr.Err))
	if threadID != uuid.Nil && s.notify != nil && terr.Scope == ScopeReply {
		s.notify.TurnFailed(userID, threadID, terr)
	}
	s.log.Warn("Chat turn failed", "thread_id", threadID, "stage", terr.Stage, "scope", terr.Scope, "error", terr.Err)
	return terr
}

func turnOutcome(err error) string {
	var (
		failed  *apierr.RunFailedError
		timeout *apierr.RunTimeoutError
		empty   *apierr.EmptyReplyError
		remote  *apierr.RemoteServiceError
	)
	switch {
	case errors.Is(err, apierr.ErrValidation):
		return "validation"
	case errors.Is(err, apierr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apierr.ErrBusy):
		return "busy"
	case errors.As(err, &failed):
		return "run_failed"
	case errors.As(err, &timeout):
		return "run_timeout"
	case errors.As(err, &empty):
		return "empty_reply"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	case errors.As(err, &remote):
		return "remote_error"
	}
	return "error"
}
