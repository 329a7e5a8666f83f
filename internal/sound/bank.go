package sound

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
)

// Canned sound names.
const (
	NameEdgePool   = "edge-pool"
	NameLaneLeft   = "lane-left"
	NameLaneMiddle = "lane-middle"
	NameLaneRight  = "lane-right"
	NameError      = "error"
)

// Waveform selects the oscillator used to synthesize a tone.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveSawtooth
)

// Tone describes one canned sound.
type Tone struct {
	Name   string
	Wave   Waveform
	Freq   float64       // Hz
	On     time.Duration // audible part
	Length time.Duration // total length including trailing silence
	Gain   float64       // 0.0-1.0
	Decay  bool          // exponential decay instead of a flat envelope
	Loop   bool
}

// DefaultTones are the five notification sounds the appliance ships with.
var DefaultTones = []Tone{
	{Name: NameEdgePool, Wave: WaveSquare, Freq: 330, On: 60 * time.Millisecond, Length: 100 * time.Millisecond, Gain: 0.5, Loop: true},
	{Name: NameLaneLeft, Wave: WaveSine, Freq: 1320, On: 80 * time.Millisecond, Length: 100 * time.Millisecond, Gain: 0.8, Loop: true},
	{Name: NameLaneMiddle, Wave: WaveSine, Freq: 880, On: 80 * time.Millisecond, Length: 100 * time.Millisecond, Gain: 0.8, Loop: true},
	{Name: NameLaneRight, Wave: WaveTriangle, Freq: 660, On: 100 * time.Millisecond, Length: 100 * time.Millisecond, Gain: 0.9, Decay: true, Loop: true},
	{Name: NameError, Wave: WaveSawtooth, Freq: 220, On: 90 * time.Millisecond, Length: 100 * time.Millisecond, Gain: 0.6, Loop: true},
}

// Bank is the set of canned sources, built once at startup.
type Bank struct {
	EdgePool   *Source
	LaneLeft   *Source
	LaneMiddle *Source
	LaneRight  *Source
	Error      *Source

	byName map[string]*Source
}

// NewBank synthesizes DefaultTones at the given sample rate.
func NewBank(sampleRate int) (*Bank, error) {
	return NewBankFromTones(sampleRate, DefaultTones)
}

// NewBankFromTones synthesizes the given tones. All five canned names must be present.
func NewBankFromTones(sampleRate int, tones []Tone) (*Bank, error) {
	b := &Bank{byName: make(map[string]*Source, len(tones))}
	for _, t := range tones {
		src, err := Synthesize(sampleRate, t)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize %q: %w", t.Name, err)
		}
		b.byName[t.Name] = src
	}

	for name, dst := range map[string]**Source{
		NameEdgePool:   &b.EdgePool,
		NameLaneLeft:   &b.LaneLeft,
		NameLaneMiddle: &b.LaneMiddle,
		NameLaneRight:  &b.LaneRight,
		NameError:      &b.Error,
	} {
		src, ok := b.byName[name]
		if !ok {
			return nil, fmt.Errorf("missing canned sound %q", name)
		}
		*dst = src
	}
	return b, nil
}

// Lookup returns the source with the given name.
func (b *Bank) Lookup(name string) (*Source, bool) {
	src, ok := b.byName[name]
	return src, ok
}

// Len returns the number of sources in the bank.
func (b *Bank) Len() int {
	return len(b.byName)
}

// Synthesize renders a tone into a mono 8-bit source.
func Synthesize(sampleRate int, t Tone) (*Source, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if t.Length <= 0 || t.On > t.Length {
		return nil, fmt.Errorf("invalid tone length on=%s length=%s", t.On, t.Length)
	}

	sr := beep.SampleRate(sampleRate)
	total := sr.N(t.Length)
	on := sr.N(t.On)

	osc, err := oscillator(sr, t)
	if err != nil {
		return nil, err
	}

	buf := make([][2]float64, on)
	if n, _ := osc.Stream(buf); n < on {
		return nil, fmt.Errorf("oscillator produced %d of %d samples", n, on)
	}

	data := make([]int8, total)
	for i := 0; i < on; i++ {
		data[i] = quantize(buf[i][0] * t.Gain * envelope(t, i, on))
	}
	return NewSource(t.Name, data, t.Loop), nil
}

func oscillator(sr beep.SampleRate, t Tone) (beep.Streamer, error) {
	switch t.Wave {
	case WaveSine:
		return generators.SineTone(sr, t.Freq)
	case WaveSquare:
		return generators.SquareTone(sr, t.Freq)
	case WaveTriangle:
		return generators.TriangleTone(sr, t.Freq)
	case WaveSawtooth:
		return generators.SawtoothTone(sr, t.Freq)
	default:
		return nil, fmt.Errorf("unknown waveform %d", t.Wave)
	}
}

// envelope shapes sample i of n: linear ramps over the first and last 5%, or
// an exponential decay.
func envelope(t Tone, i, n int) float64 {
	if t.Decay {
		return math.Exp(-4 * float64(i) / float64(n))
	}
	ramp := n / 20
	if ramp == 0 {
		return 1
	}
	switch {
	case i < ramp:
		return float64(i) / float64(ramp)
	case i >= n-ramp:
		return float64(n-1-i) / float64(ramp)
	default:
		return 1
	}
}

func quantize(v float64) int8 {
	v = math.Round(v * 127)
	if v > 127 {
		v = 127
	}
	if v < -128 {
		v = -128
	}
	return int8(v)
}
