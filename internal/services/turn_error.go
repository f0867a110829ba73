package services

import (
	"fmt"

	types "github.com/yungbote/concierge-backend/internal/domain"
)

// TurnStage is the step of a conversation turn that failed.
type TurnStage string

const (
	StageValidate    TurnStage = "validate"
	StageThread      TurnStage = "thread"
	StagePersistUser TurnStage = "persist_user_message"
	StageSend        TurnStage = "send_message"
	StageStartRun    TurnStage = "start_run"
	StagePoll        TurnStage = "poll_run"
	StageExtract     TurnStage = "extract_reply"
	StagePersistAsst TurnStage = "persist_reply"
)

// TurnScope tells the caller what is safe to retry.
type TurnScope string

const (
	// ScopeTurn: nothing was persisted; the whole turn may be resubmitted.
	ScopeTurn TurnScope = "turn"
	// ScopeReply: the user message is persisted; only RetryReply is allowed.
	ScopeReply TurnScope = "reply"
)

type TurnError struct {
	Stage       TurnStage
	Scope       TurnScope
	Thread      *types.ChatThread
	UserMessage *types.ChatMessage
	Err         error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("chat turn failed at %s (retry %s): %v", e.Stage, e.Scope, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

func turnFailed(stage TurnStage, err error) *TurnError {
	return &TurnError{Stage: stage, Scope: ScopeTurn, Err: err}
}

func replyFailed(stage TurnStage, thread *types.ChatThread, userMsg *types.ChatMessage, err error) *TurnError {
	return &TurnError{Stage: stage, Scope: ScopeReply, Thread: thread, UserMessage: userMsg, Err: err}
}
