package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const (
	DefaultBaseURL    = "https://api.openai.com"
	DefaultBetaHeader = "assistants=v2"
	DefaultTimeout    = 60 * time.Second

	serviceName = "assistant"
)

// Gateway is the only component that talks to the remote assistant service.
type Gateway interface {
	CreateThread(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID, text string) (string, error)
	StartRun(ctx context.Context, threadID string) (*chat.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*chat.Run, error)
	// ActiveRun returns the newest run when it is still non-terminal, nil otherwise.
	ActiveRun(ctx context.Context, threadID string) (*chat.Run, error)
	ExtractReply(ctx context.Context, threadID, runID string) (string, error)
}

// CallObserver receives one sample per remote call.
type CallObserver interface {
	ObserveAssistantCall(op, status string, dur time.Duration)
}

type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	BetaHeader  string
	Timeout     time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	Observer   CallObserver
}

type gateway struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	assistantID string
	beta        string
	httpClient  *http.Client
	observer    CallObserver
	tracer      trace.Tracer
}

func New(cfg Config, log *logger.Logger) (Gateway, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	assistantID := strings.TrimSpace(cfg.AssistantID)
	if assistantID == "" {
		return nil, fmt.Errorf("missing OPENAI_ASSISTANT_ID")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	beta := strings.TrimSpace(cfg.BetaHeader)
	if beta == "" {
		beta = DefaultBetaHeader
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &gateway{
		log:         log.With("service", "AssistantGateway"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		assistantID: assistantID,
		beta:        beta,
		httpClient:  hc,
		observer:    cfg.Observer,
		tracer:      otel.Tracer("concierge/assistant"),
	}, nil
}

// -------------------- wire types --------------------

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type runBody struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

func (b runBody) toRun() *chat.Run {
	run := &chat.Run{
		ID:       b.ID,
		ThreadID: b.ThreadID,
		Status:   chat.NormalizeRunStatus(b.Status),
	}
	switch {
	case b.LastError != nil && (b.LastError.Code != "" || b.LastError.Message != ""):
		run.LastError = &chat.RunError{Code: b.LastError.Code, Message: b.LastError.Message}
	case b.Status == "expired":
		run.LastError = &chat.RunError{Code: "expired", Message: "run expired before completing"}
	case b.Status == "incomplete" && b.IncompleteDetails != nil:
		run.LastError = &chat.RunError{Code: "incomplete", Message: b.IncompleteDetails.Reason}
	}
	return run
}

type messageBody struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	RunID   string `json:"run_id"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type listBody[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// -------------------- transport --------------------

func (g *gateway) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", g.beta)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp.StatusCode, raw)
	}
	return raw, nil
}

// do performs one call with no retry; callers own retry policy.
func (g *gateway) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	ctx, span := g.tracer.Start(ctx, "assistant."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("assistant.op", op),
	))
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = callStatus(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		span.End()
		if g.observer != nil {
			g.observer.ObserveAssistantCall(op, status, time.Since(start))
		}
	}()

	raw, err := g.doOnce(ctx, method, path, body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var remote *apierr.RemoteServiceError
		if errors.As(err, &remote) {
			g.log.Warn("Assistant call rejected", "op", op, "status", remote.Status, "code", remote.Code, "error", remote.Message)
			return err
		}
		g.log.Warn("Assistant call failed", "op", op, "error", err)
		return &apierr.RemoteServiceError{Service: serviceName, Message: err.Error(), Err: err}
	}
	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return &apierr.RemoteServiceError{
			Service: serviceName,
			Code:    "decode_error",
			Message: fmt.Sprintf("decode %s response: %v", op, uErr),
			Err:     uErr,
		}
	}
	return nil
}

func httpError(status int, raw []byte) error {
	out := &apierr.RemoteServiceError{Service: serviceName, Status: status}
	var body apiErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		out.Message = body.Error.Message
		switch c := body.Error.Code.(type) {
		case string:
			out.Code = c
		case nil:
			out.Code = body.Error.Type
		default:
			out.Code = fmt.Sprint(c)
		}
	} else {
		out.Message = strings.TrimSpace(string(raw))
		if len(out.Message) > 512 {
			out.Message = out.Message[:512]
		}
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(out.Message), "already has an active run") {
		out.Err = apierr.ErrRunActive
	}
	return out
}

func callStatus(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	var remote *apierr.RemoteServiceError
	if errors.As(err, &remote) && remote.Status != 0 {
		return fmt.Sprintf("http_%d", remote.Status)
	}
	return "error"
}

// -------------------- operations --------------------

func (g *gateway) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, "create_thread", http.MethodPost, "/v1/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	id := strings.TrimSpace(out.ID)
	if id == "" {
		return "", &apierr.RemoteServiceError{Service: serviceName, Code: "missing_id", Message: "create thread: missing id"}
	}
	return id, nil
}

func (g *gateway) SendMessage(ctx context.Context, threadID, text string) (string, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return "", apierr.Validation("missing thread id")
	}
	if strings.TrimSpace(text) == "" {
		return "", apierr.Validation("message content is empty")
	}
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{"role": "user", "content": text}
	if err := g.do(ctx, "send_message", http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/messages", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (g *gateway) StartRun(ctx context.Context, threadID string) (*chat.Run, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apierr.Validation("missing thread id")
	}
	var out runBody
	body := map[string]any{"assistant_id": g.assistantID}
	if err := g.do(ctx, "start_run", http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/runs", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &apierr.RemoteServiceError{Service: serviceName, Code: "missing_id", Message: "start run: missing id"}
	}
	if out.ThreadID == "" {
		out.ThreadID = threadID
	}
	return out.toRun(), nil
}

func (g *gateway) GetRun(ctx context.Context, threadID, runID string) (*chat.Run, error) {
	threadID, runID = strings.TrimSpace(threadID), strings.TrimSpace(runID)
	if threadID == "" || runID == "" {
		return nil, apierr.Validation("missing thread id or run id")
	}
	var out runBody
	path := "/v1/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := g.do(ctx, "get_run", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = runID
	}
	if out.ThreadID == "" {
		out.ThreadID = threadID
	}
	return out.toRun(), nil
}

func (g *gateway) ActiveRun(ctx context.Context, threadID string) (*chat.Run, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apierr.Validation("missing thread id")
	}
	var out listBody[runBody]
	path := "/v1/threads/" + url.PathEscape(threadID) + "/runs?limit=1&order=desc"
	if err := g.do(ctx, "list_runs", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	if out.Data[0].ThreadID == "" {
		out.Data[0].ThreadID = threadID
	}
	run := out.Data[0].toRun()
	if run.Status.Terminal() {
		return nil, nil
	}
	return run, nil
}

func (g *gateway) ExtractReply(ctx context.Context, threadID, runID string) (string, error) {
	threadID, runID = strings.TrimSpace(threadID), strings.TrimSpace(runID)
	if threadID == "" || runID == "" {
		return "", apierr.Validation("missing thread id or run id")
	}
	q := url.Values{}
	q.Set("run_id", runID)
	q.Set("order", "asc")
	q.Set("limit", "100")
	var out listBody[messageBody]
	path := "/v1/threads/" + url.PathEscape(threadID) + "/messages?" + q.Encode()
	if err := g.do(ctx, "list_messages", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		if m.Role != "assistant" {
			continue
		}
		if m.RunID != "" && m.RunID != runID {
			continue
		}
		for _, c := range m.Content {
			if c.Type != "text" || c.Text == nil {
				continue
			}
			if v := strings.TrimSpace(c.Text.Value); v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(parts) == 0 {
		return "", &apierr.EmptyReplyError{RunID: runID}
	}
	return strings.Join(parts, "\n\n"), nil
}
