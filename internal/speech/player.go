package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNothingLoaded is returned by Play when no text has been loaded.
	ErrNothingLoaded = errors.New("speech: nothing loaded")
	// ErrAlreadyPlaying is returned by Play while another Play is running.
	ErrAlreadyPlaying = errors.New("speech: already playing")
)

// Options configures a Player.
type Options struct {
	Voice  Voice
	Pauses Pauses
	Logger *zap.Logger
}

// State is a snapshot of playback.
type State struct {
	Playing bool
	Index   int
	Total   int
	// Err is the last driver error. It is cleared by Load and Play.
	Err error
}

// Player hands sentences to a Driver one at a time.
type Player struct {
	driver Driver
	voice  Voice
	pauses Pauses
	log    *zap.Logger

	mu         sync.Mutex
	sentences  []Sentence
	index      int
	playing    bool
	err        error
	stop       chan struct{}
	jump       chan struct{}
	onSentence func(Sentence)
}

// NewPlayer returns a Player speaking through driver.
func NewPlayer(driver Driver, opts Options) *Player {
	if opts.Voice == (Voice{}) {
		opts.Voice = DefaultVoice()
	}
	if opts.Pauses == (Pauses{}) {
		opts.Pauses = DefaultPauses()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Player{
		driver: driver,
		voice:  opts.Voice,
		pauses: opts.Pauses,
		log:    opts.Logger,
	}
}

// OnSentence registers fn to be called as each sentence starts.
func (p *Player) OnSentence(fn func(Sentence)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSentence = fn
}

// Load stops playback and segments text. It returns the sentence count.
func (p *Player) Load(text string) int {
	p.Stop()
	sentences := Segment(text)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentences = sentences
	p.index = 0
	p.err = nil
	return len(sentences)
}

// Sentences returns the loaded sentences.
func (p *Player) Sentences() []Sentence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sentences
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Playing: p.playing,
		Index:   p.index,
		Total:   len(p.sentences),
		Err:     p.err,
	}
}

// Play speaks from the current sentence to the end and blocks until done,
// stopped or ctx is cancelled. At the end the index returns to the first
// sentence. A driver error halts playback and is reported through State,
// not returned.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if len(p.sentences) == 0 {
		p.mu.Unlock()
		return ErrNothingLoaded
	}
	if p.playing {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	p.playing = true
	p.err = nil
	p.stop = make(chan struct{})
	p.jump = make(chan struct{}, 1)
	stop, jump := p.stop, p.jump
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if !p.playing || p.stop != stop {
			p.mu.Unlock()
			return nil
		}
		if p.index >= len(p.sentences) {
			p.index = 0
			p.playing = false
			p.mu.Unlock()
			p.log.Debug("playback finished")
			return nil
		}
		s := p.sentences[p.index]
		notify := p.onSentence
		p.mu.Unlock()

		if notify != nil {
			notify(s)
		}

		done := make(chan error, 1)
		finish := func(err error) {
			select {
			case done <- err:
			default:
			}
		}
		p.driver.Speak(p.pauses.Annotate(s.Text), p.voice,
			func() { finish(nil) },
			func(err error) {
				if err == nil {
					err = errors.New("driver reported an error")
				}
				finish(err)
			})

		select {
		case err := <-done:
			p.mu.Lock()
			if err != nil {
				p.err = fmt.Errorf("sentence %d: %w", s.ID, err)
				p.playing = false
				p.mu.Unlock()
				p.log.Warn("speech driver failed", zap.Int("sentence", s.ID), zap.Error(err))
				return nil
			}
			select {
			case <-jump:
				// Index was moved while the sentence was spoken.
			default:
				p.index++
			}
			p.mu.Unlock()

		case <-jump:
			p.silence()

		case <-stop:
			return nil

		case <-ctx.Done():
			p.silence()
			p.mu.Lock()
			if p.stop == stop {
				p.playing = false
			}
			p.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Stop halts playback. The sentences and the current index are kept, so a
// later Play resumes at the start of the interrupted sentence. Stopping a
// stopped player does nothing.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	close(p.stop)
	p.mu.Unlock()
	p.silence()
}

// Next moves to the following sentence. It reports false at the last one.
func (p *Player) Next() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index+1 >= len(p.sentences) {
		return false
	}
	p.moveLocked(p.index + 1)
	return true
}

// Previous moves to the preceding sentence. It reports false at the first.
func (p *Player) Previous() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index <= 0 {
		return false
	}
	p.moveLocked(p.index - 1)
	return true
}

// Seek moves to sentence i, clamped to the loaded range.
func (p *Player) Seek(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sentences) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(p.sentences) {
		i = len(p.sentences) - 1
	}
	p.moveLocked(i)
}

// SeekOffset moves to the sentence containing byte offset off of the
// loaded text, or the next sentence after it.
func (p *Player) SeekOffset(off int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.sentences {
		if off < s.EndIndex {
			p.moveLocked(i)
			return
		}
	}
}

// moveLocked sets the index and, while playing, interrupts the current
// utterance so playback continues from the new sentence.
func (p *Player) moveLocked(i int) {
	p.index = i
	if p.playing {
		select {
		case p.jump <- struct{}{}:
		default:
		}
	}
}

func (p *Player) silence() {
	if s, ok := p.driver.(Stopper); ok {
		s.StopSpeaking()
	}
}
