package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDriver records utterances. Utterances complete immediately unless
// hold is set, in which case they wait for release or StopSpeaking.
type fakeDriver struct {
	mu      sync.Mutex
	spoken  []string
	voices  []Voice
	fail    map[int]error
	hold    bool
	started chan string
	release chan struct{}
	stops   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		fail:    map[int]error{},
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (d *fakeDriver) Speak(text string, voice Voice, onDone func(), onError func(error)) {
	d.mu.Lock()
	n := len(d.spoken)
	d.spoken = append(d.spoken, text)
	d.voices = append(d.voices, voice)
	err := d.fail[n]
	hold := d.hold
	d.mu.Unlock()

	d.started <- text
	go func() {
		if hold {
			<-d.release
		}
		if err != nil {
			onError(err)
			return
		}
		onDone()
	}()
}

func (d *fakeDriver) StopSpeaking() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDriver) utterances() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.spoken))
	for i, s := range d.spoken {
		out[i] = squash(s)
	}
	return out
}

// squash undoes pause padding.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const playerText = "Dr. Smith went home. He was tired. He slept."

func TestPlayerPlaysSequentially(t *testing.T) {
	d := newFakeDriver()
	p := NewPlayer(d, Options{})

	if n := p.Load(playerText); n != 3 {
		t.Fatalf("Load() = %d sentences, want 3", n)
	}

	var seen []int
	p.OnSentence(func(s Sentence) { seen = append(seen, s.ID) })

	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	want := []string{"Dr. Smith went home.", "He was tired.", "He slept."}
	got := d.utterances()
	if len(got) != len(want) {
		t.Fatalf("spoke %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("OnSentence saw %v", seen)
	}
	if d.voices[0] != DefaultVoice() {
		t.Errorf("voice = %+v, want default", d.voices[0])
	}

	st := p.State()
	if st.Playing || st.Index != 0 || st.Total != 3 {
		t.Errorf("state after playback = %+v", st)
	}
}

func TestPlayerNothingLoaded(t *testing.T) {
	p := NewPlayer(newFakeDriver(), Options{})
	if err := p.Play(context.Background()); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("Play error = %v, want ErrNothingLoaded", err)
	}
}

func TestPlayerDriverErrorCaptured(t *testing.T) {
	d := newFakeDriver()
	d.fail[1] = errors.New("audio device busy")
	p := NewPlayer(d, Options{})
	p.Load(playerText)

	if err := p.Play(context.Background()); err != nil {
		t.Fatalf("Play returned the driver error: %v", err)
	}

	st := p.State()
	if st.Err == nil || !strings.Contains(st.Err.Error(), "audio device busy") || st.Playing {
		t.Errorf("state = %+v, want captured error and not playing", st)
	}
	if st.Index != 1 {
		t.Errorf("index = %d, want the failed sentence 1", st.Index)
	}
	if len(d.utterances()) != 2 {
		t.Errorf("spoke %d sentences after a failure", len(d.utterances()))
	}
}

func TestPlayerStopKeepsPlace(t *testing.T) {
	d := newFakeDriver()
	p := NewPlayer(d, Options{})
	p.Load(playerText)
	p.Seek(1)

	d.hold = true
	result := make(chan error, 1)
	go func() { result <- p.Play(context.Background()) }()
	<-d.started

	if err := p.Play(context.Background()); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("second Play error = %v, want ErrAlreadyPlaying", err)
	}

	p.Stop()
	p.Stop()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Play after Stop = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}

	st := p.State()
	if st.Playing || st.Index != 1 || st.Total != 3 {
		t.Errorf("state after Stop = %+v, want index 1 of 3", st)
	}
	if len(p.Sentences()) != 3 {
		t.Error("Stop discarded the sentences")
	}
	d.mu.Lock()
	stops := d.stops
	d.mu.Unlock()
	if stops != 1 {
		t.Errorf("driver stopped %d times, want 1", stops)
	}

	// Resuming replays the interrupted sentence.
	d.mu.Lock()
	d.hold = false
	d.mu.Unlock()
	close(d.release)
	if err := p.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := d.utterances()
	if got[len(got)-2] != "He was tired." {
		t.Errorf("resumed at %q", got[len(got)-2])
	}
}

func TestPlayerContextCancel(t *testing.T) {
	d := newFakeDriver()
	d.hold = true
	p := NewPlayer(d, Options{})
	p.Load(playerText)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- p.Play(ctx) }()
	<-d.started
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Play error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	if p.State().Playing {
		t.Error("player still playing after cancel")
	}
	close(d.release)
}

func TestPlayerJumpWhilePlaying(t *testing.T) {
	d := newFakeDriver()
	d.hold = true
	p := NewPlayer(d, Options{})
	p.Load(playerText)

	result := make(chan error, 1)
	go func() { result <- p.Play(context.Background()) }()

	if first := squash(<-d.started); first != "Dr. Smith went home." {
		t.Fatalf("first utterance %q", first)
	}
	p.Seek(2)
	if next := squash(<-d.started); next != "He slept." {
		t.Errorf("after Seek(2) spoke %q", next)
	}

	close(d.release)
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Play = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not finish")
	}
}

func TestPlayerNavigation(t *testing.T) {
	p := NewPlayer(newFakeDriver(), Options{})
	p.Load(playerText)

	if p.Previous() {
		t.Error("Previous at first sentence should report false")
	}
	if !p.Next() || !p.Next() {
		t.Error("Next should move twice")
	}
	if p.Next() {
		t.Error("Next at last sentence should report false")
	}
	if p.State().Index != 2 {
		t.Errorf("index = %d, want 2", p.State().Index)
	}

	p.Seek(-5)
	if p.State().Index != 0 {
		t.Errorf("Seek(-5) index = %d", p.State().Index)
	}
	p.Seek(99)
	if p.State().Index != 2 {
		t.Errorf("Seek(99) index = %d", p.State().Index)
	}

	p.SeekOffset(strings.Index(playerText, "tired"))
	if p.State().Index != 1 {
		t.Errorf("SeekOffset index = %d, want 1", p.State().Index)
	}

	p.Load("Fresh text.")
	if st := p.State(); st.Index != 0 || st.Total != 1 {
		t.Errorf("state after reload = %+v", st)
	}
}
