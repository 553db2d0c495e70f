package game

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tatianab/adventure-engine/internal/audio"
	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/models"
)

// --- Conversation ---

// scriptedConversation replies to each Send with the next script entry.
type scriptedConversation struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	chunks []string
	err    error
	// gate, when set, is received from before each chunk is emitted.
	gate chan struct{}
}

func (c *scriptedConversation) Send(ctx context.Context, prompt string) iter.Seq2[string, error] {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	var r reply
	if len(c.replies) > 0 {
		r = c.replies[0]
		c.replies = c.replies[1:]
	} else {
		r = reply{err: errors.New("no scripted reply")}
	}
	c.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, chunk := range r.chunks {
			if r.gate != nil {
				<-r.gate
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if r.err != nil {
			yield("", r.err)
		}
	}
}

func (c *scriptedConversation) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// --- Gateway ---

type startCall struct {
	history    []models.GameTurn
	difficulty models.Difficulty
}

type fakeGateway struct {
	mu       sync.Mutex
	conv     *scriptedConversation
	startErr error
	starts   []startCall

	imageURL   string
	imagePanic bool
	imageGate  chan struct{}
	images     []string

	speech   string
	speechOK bool
	spoken   []string
}

func newFakeGateway(replies ...reply) *fakeGateway {
	return &fakeGateway{
		conv:     &scriptedConversation{replies: replies},
		imageURL: "data:image/jpeg;base64,AAAA",
	}
}

func (g *fakeGateway) StartConversation(ctx context.Context, history []models.GameTurn, difficulty models.Difficulty) (engine.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.starts = append(g.starts, startCall{history: append([]models.GameTurn(nil), history...), difficulty: difficulty})
	if g.startErr != nil {
		return nil, g.startErr
	}
	return g.conv, nil
}

func (g *fakeGateway) GenerateImage(ctx context.Context, prompt string) string {
	g.mu.Lock()
	g.images = append(g.images, prompt)
	gate := g.imageGate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.imagePanic {
		panic("imagen exploded")
	}
	return g.imageURL
}

func (g *fakeGateway) GenerateSpeech(ctx context.Context, text string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spoken = append(g.spoken, text)
	return g.speech, g.speechOK
}

func (g *fakeGateway) startCalls() []startCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]startCall(nil), g.starts...)
}

func (g *fakeGateway) imagePrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.images...)
}

func (g *fakeGateway) speechRequests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.spoken...)
}

// mockGateway is a testify mock for tests that assert on exact calls.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) StartConversation(ctx context.Context, history []models.GameTurn, difficulty models.Difficulty) (engine.Conversation, error) {
	args := m.Called(ctx, history, difficulty)
	conv, _ := args.Get(0).(engine.Conversation)
	return conv, args.Error(1)
}

func (m *mockGateway) GenerateImage(ctx context.Context, prompt string) string {
	args := m.Called(ctx, prompt)
	return args.String(0)
}

func (m *mockGateway) GenerateSpeech(ctx context.Context, text string) (string, bool) {
	args := m.Called(ctx, text)
	return args.String(0), args.Bool(1)
}

// --- Speaker ---

type fakeSpeaker struct {
	mu    sync.Mutex
	plays []*audio.Buffer
	stops int

	// started and playGate, when set, hold Play open until playGate closes.
	started  chan struct{}
	playGate chan struct{}
}

func (s *fakeSpeaker) Play(buf *audio.Buffer) error {
	if s.playGate != nil {
		close(s.started)
		<-s.playGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, buf)
	return nil
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSpeaker) counts() (plays, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays), s.stops
}

// pcmPayload is one second of silence as the gateway would return it.
func pcmPayload() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 2*audio.SampleRate))
}
