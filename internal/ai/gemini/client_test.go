package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type scriptedReply struct {
	resp *genai.GenerateContentResponse
	err  error
}

type recordedCall struct {
	model    string
	config   *genai.GenerateContentConfig
	messages []string
}

// scriptedChats hands out one reply per created chat, in order.
type scriptedChats struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   []*recordedCall
}

type scriptedChat struct {
	call  *recordedCall
	reply scriptedReply
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		c.call.messages = append(c.call.messages, part.Text)
	}
	return c.reply.resp, c.reply.err
}

func (s *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return nil, errors.New("unexpected call")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	call := &recordedCall{model: model, config: config}
	s.calls = append(s.calls, call)
	return &scriptedChat{call: call, reply: reply}, nil
}

func textReply(texts ...string) scriptedReply {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return scriptedReply{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}}
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	original := sleep
	sleep = func(d time.Duration) { waits = append(waits, d) }
	t.Cleanup(func() { sleep = original })
	return &waits
}

func newTestGenerator(chats *scriptedChats, retries int) *Generator {
	return &Generator{chats: chats, model: "gemini-test", maxRetries: retries, logger: zap.NewNop()}
}

func TestCompleteRetriesOnTemporaryError(t *testing.T) {
	waits := noSleep(t)

	chats := &scriptedChats{replies: []scriptedReply{
		{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}},
		textReply(`{"fit": true}`),
	}}

	output, err := newTestGenerator(chats, 3).Complete(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != `{"fit": true}` {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
	if len(*waits) != 1 || (*waits)[0] != retryDelay {
		t.Fatalf("expected a single %s wait, got %v", retryDelay, *waits)
	}

	for _, call := range chats.calls {
		if call.model != "gemini-test" {
			t.Fatalf("unexpected model %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatal("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.messages) != 1 || call.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.messages)
		}
	}
}

func TestCompleteStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats := &scriptedChats{replies: []scriptedReply{{err: tempErr}, {err: tempErr}}}

	if _, err := newTestGenerator(chats, 2).Complete(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestCompleteQuotaDelays(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantCalls int
		wantWait  time.Duration
	}{
		{
			name:      "long delay is not retried",
			message:   "quota exhausted, retry after 60 seconds",
			wantCalls: 1,
		},
		{
			name:      "short delay honoured",
			message:   "rate limited, retry in 5s",
			wantCalls: 2,
			wantWait:  5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waits := noSleep(t)

			chats := &scriptedChats{replies: []scriptedReply{
				{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: tt.message}},
				textReply("ok"),
			}}

			_, _ = newTestGenerator(chats, 3).Complete(context.Background(), "sys", "msg")
			if len(chats.calls) != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, len(chats.calls))
			}
			if tt.wantWait > 0 && (len(*waits) != 1 || (*waits)[0] != tt.wantWait) {
				t.Fatalf("expected wait %s, got %v", tt.wantWait, *waits)
			}
		})
	}
}

func TestCompleteDoesNotRetryPlainErrors(t *testing.T) {
	noSleep(t)

	chats := &scriptedChats{replies: []scriptedReply{{err: errors.New("dial tcp: refused")}, textReply("ok")}}
	if _, err := newTestGenerator(chats, 3).Complete(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
	if chats.calls[0].config.SystemInstruction != nil {
		t.Fatal("empty system prompt must not be sent")
	}
}

func TestCompleteJoinsParts(t *testing.T) {
	chats := &scriptedChats{replies: []scriptedReply{textReply(" {\"fit\": ", "", "true} ")}}

	output, err := newTestGenerator(chats, 1).Complete(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "{\"fit\":\ntrue}" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestCompleteRejectsEmptyPrompt(t *testing.T) {
	if _, err := newTestGenerator(&scriptedChats{}, 1).Complete(context.Background(), "sys", "  "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
