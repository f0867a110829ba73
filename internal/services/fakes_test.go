package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/yungbote/concierge-backend/internal/data/repos/chat"
	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

// fakeGateway scripts the remote assistant. GetRun walks statuses and repeats the last one.
type fakeGateway struct {
	mu sync.Mutex

	threads  int
	runs     int
	sent     []string
	statuses []chat.RunStatus
	lastErr  *chat.RunError
	active   *chat.Run
	reply    string

	sendErr    error
	startErr   error
	extractErr error

	getRunCalls  int
	extractCalls int
}

func newFakeGateway(reply string, statuses ...chat.RunStatus) *fakeGateway {
	if len(statuses) == 0 {
		statuses = []chat.RunStatus{chat.RunCompleted}
	}
	return &fakeGateway{reply: reply, statuses: statuses}
}

func (f *fakeGateway) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads++
	return fmt.Sprintf("thread_%d_%s", f.threads, uuid.NewString()[:8]), nil
}

func (f *fakeGateway) SendMessage(ctx context.Context, threadID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, text)
	return fmt.Sprintf("msg_%d", len(f.sent)), nil
}

func (f *fakeGateway) StartRun(ctx context.Context, threadID string) (*chat.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.runs++
	return &chat.Run{ID: fmt.Sprintf("run_%d", f.runs), ThreadID: threadID, Status: chat.RunQueued}, nil
}

func (f *fakeGateway) GetRun(ctx context.Context, threadID, runID string) (*chat.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRunCalls++
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	run := &chat.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == chat.RunFailed {
		run.LastError = f.lastErr
	}
	return run, nil
}

func (f *fakeGateway) ActiveRun(ctx context.Context, threadID string) (*chat.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeGateway) ExtractReply(ctx context.Context, threadID, runID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls++
	if f.extractErr != nil {
		return "", f.extractErr
	}
	if f.reply == "" {
		return "", &apierr.EmptyReplyError{RunID: runID}
	}
	return f.reply, nil
}

func (f *fakeGateway) script(statuses ...chat.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func (f *fakeGateway) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) count(event realtime.SSEEvent) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.msgs {
		if m.Event == event {
			n++
		}
	}
	return n
}

type chatHarness struct {
	db       *gorm.DB
	gw       *fakeGateway
	emit     *recordingEmitter
	threads  ThreadStore
	messages MessageStore
	poller   RunPoller
	conv     ConversationService
}

func newChatHarness(t *testing.T, gw *fakeGateway) *chatHarness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.New()

	threadRepo := chatrepo.NewThreadRepo(db, log)
	messageRepo := chatrepo.NewMessageRepo(db, log)
	emit := &recordingEmitter{}
	notify := NewChatNotifier(emit)

	threads := NewThreadStore(log, threadRepo, gw, nil, notify)
	messages := NewMessageStore(db, log, threadRepo, messageRepo)
	poller := NewRunPoller(log, gw, PollerConfig{Interval: 5 * time.Millisecond, MaxAttempts: 5}, metrics)
	return &chatHarness{
		db:       db,
		gw:       gw,
		emit:     emit,
		threads:  threads,
		messages: messages,
		poller:   poller,
		conv:     NewConversationService(log, threads, messages, gw, poller, notify, metrics),
	}
}
