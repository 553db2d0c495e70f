package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const pollInterval = 20 * time.Millisecond

// OtoOutput plays buffers on the system audio device.
type OtoOutput struct {
	ctx *oto.Context
}

// NewOtoOutput opens the audio device for narration playback. Only one
// may exist per process.
func NewOtoOutput() (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	return &OtoOutput{ctx: ctx}, nil
}

func (o *OtoOutput) Play(buf *Buffer) (Voice, error) {
	if buf.SampleRate != SampleRate || buf.Channels != Channels {
		return nil, fmt.Errorf("unsupported format %d Hz x%d", buf.SampleRate, buf.Channels)
	}
	data := make([]byte, 4*len(buf.Samples))
	for i, s := range buf.Samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(s))
	}

	p := o.ctx.NewPlayer(bytes.NewReader(data))
	p.Play()

	v := &otoVoice{
		player: p,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go v.poll()
	return v, nil
}

type otoVoice struct {
	player   *oto.Player
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (v *otoVoice) poll() {
	defer close(v.done)
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-t.C:
			if !v.player.IsPlaying() {
				return
			}
		}
	}
}

func (v *otoVoice) Stop() {
	v.stopOnce.Do(func() {
		v.player.Pause()
		close(v.stop)
	})
}

func (v *otoVoice) Done() <-chan struct{} { return v.done }

// DiscardOutput drops samples but keeps each voice alive for the buffer's
// duration, for machines without an audio device.
type DiscardOutput struct{}

func (DiscardOutput) Play(buf *Buffer) (Voice, error) {
	v := &timerVoice{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(v.done)
		t := time.NewTimer(buf.Duration())
		defer t.Stop()
		select {
		case <-t.C:
		case <-v.stop:
		}
	}()
	return v, nil
}

type timerVoice struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (v *timerVoice) Stop() {
	v.stopOnce.Do(func() { close(v.stop) })
}

func (v *timerVoice) Done() <-chan struct{} { return v.done }
