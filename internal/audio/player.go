package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// Voice is one in-progress playback on an Output.
type Voice interface {
	// Stop halts output immediately. Calling it more than once is safe.
	Stop()
	// Done is closed when playback ends, naturally or through Stop.
	Done() <-chan struct{}
}

// Output starts playback of a buffer on some device.
type Output interface {
	Play(buf *Buffer) (Voice, error)
}

// Player owns the single playback slot: at most one voice is audible at a time.
type Player struct {
	out Output
	log zerolog.Logger

	mu      sync.Mutex
	current *Buffer
	voice   Voice
	gen     uint64
}

// NewPlayer creates a player writing to out.
func NewPlayer(out Output, log zerolog.Logger) *Player {
	return &Player{
		out: out,
		log: log.With().Str("component", "audio").Logger(),
	}
}

// Play stops whatever is playing and starts buf.
func (p *Player) Play(buf *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	v, err := p.out.Play(buf)
	if err != nil {
		p.current = nil
		return err
	}
	p.gen++
	p.current = buf
	p.voice = v
	go p.watch(v, p.gen)

	p.log.Debug().Dur("duration", buf.Duration()).Msg("playback started")
	return nil
}

// Stop halts playback. It is a no-op when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.voice == nil {
		return
	}
	p.voice.Stop()
	p.voice = nil
	p.gen++
	p.log.Debug().Msg("playback stopped")
}

// watch releases the slot when v finishes on its own.
func (p *Player) watch(v Voice, gen uint64) {
	<-v.Done()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen {
		p.voice = nil
	}
}

// Active reports whether a voice is currently playing.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice != nil
}

// Current returns the most recently played buffer, if any.
func (p *Player) Current() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
