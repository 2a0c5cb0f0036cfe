package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Voice holds synthesis parameters. 1.0 is the driver's normal setting for
// each.
type Voice struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultVoice returns normal rate, pitch and volume.
func DefaultVoice() Voice {
	return Voice{Rate: 1, Pitch: 1, Volume: 1}
}

// Driver turns text into audio. Speak returns immediately; exactly one of
// onDone or onError is called when the utterance ends, unless it is stopped.
type Driver interface {
	Speak(text string, voice Voice, onDone func(), onError func(error))
}

// Stopper is implemented by drivers that can cut an utterance short.
type Stopper interface {
	StopSpeaking()
}

// TimedDriver makes no sound: each utterance lasts as long as its words take
// at ReferenceWPM scaled by the voice rate. It paces read-along highlighting
// when no synthesizer is configured.
type TimedDriver struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewTimedDriver returns a silent pacing driver.
func NewTimedDriver() *TimedDriver {
	return &TimedDriver{}
}

func (d *TimedDriver) Speak(text string, voice Voice, onDone func(), onError func(error)) {
	rate := voice.Rate
	if rate <= 0 {
		rate = 1
	}
	n := len(Words(text, 0))
	dur := time.Duration(float64(EstimateDuration(n)) / rate)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(dur, onDone)
}

func (d *TimedDriver) StopSpeaking() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// espeak defaults for a 1.0 voice setting.
const (
	baseWordsPerMinute = 175
	basePitch          = 50
	baseAmplitude      = 100
)

// CommandDriver speaks by running an external synthesizer once per
// utterance. The command receives espeak-style -s (words per minute),
// -p (pitch 0-99) and -a (amplitude 0-200) flags followed by the text.
type CommandDriver struct {
	name string
	args []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandDriver parses a command line such as "espeak-ng -v en-gb".
func NewCommandDriver(command string) (*CommandDriver, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty speech command")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("speech command %q: %w", fields[0], err)
	}
	return &CommandDriver{name: fields[0], args: fields[1:]}, nil
}

// Args returns the full argument list used to speak text with voice.
func (d *CommandDriver) Args(text string, voice Voice) []string {
	scale := func(v float64, base, hi int) string {
		if v <= 0 {
			v = 1
		}
		n := int(v * float64(base))
		if n > hi {
			n = hi
		}
		return strconv.Itoa(n)
	}
	args := append([]string{}, d.args...)
	return append(args,
		"-s", scale(voice.Rate, baseWordsPerMinute, 500),
		"-p", scale(voice.Pitch, basePitch, 99),
		"-a", scale(voice.Volume, baseAmplitude, 200),
		"--", text,
	)
}

func (d *CommandDriver) Speak(text string, voice Voice, onDone func(), onError func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()

	cmd := exec.CommandContext(ctx, d.name, d.Args(text, voice)...)
	go func() {
		defer cancel()
		out, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			onError(fmt.Errorf("%s: %w: %s", d.name, err, strings.TrimSpace(string(out))))
			return
		}
		onDone()
	}()
}

func (d *CommandDriver) StopSpeaking() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
