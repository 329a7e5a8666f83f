package sound

// Frame is one stereo output frame of signed 16-bit PCM.
type Frame struct {
	Left  int16
	Right int16
}

// Silence is the frame written when nothing is assigned.
var Silence = Frame{}

// Source is an immutable mono 8-bit sound. The mixer holds only references to
// sources; the sample data is owned by whoever built the Source.
type Source struct {
	name string
	data []int8
	loop bool
}

// NewSource creates a source over the given samples. The slice is not copied.
func NewSource(name string, data []int8, loop bool) *Source {
	return &Source{
		name: name,
		data: data,
		loop: loop,
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return s.name
}

// Len returns the number of samples.
func (s *Source) Len() int {
	return len(s.data)
}

// Loop reports whether reads past the end wrap around.
func (s *Source) Loop() bool {
	return s.loop
}

// Frame returns the stereo frame at index.
// Looping sources wrap modulo their length. A non-looping source past its end
// (and any empty source) returns silence and ok=false.
func (s *Source) Frame(index int) (frame Frame, ok bool) {
	n := len(s.data)
	if n == 0 || index < 0 {
		return Silence, false
	}
	if index >= n {
		if !s.loop {
			return Silence, false
		}
		index %= n
	}
	v := upmix(s.data[index])
	return Frame{Left: v, Right: v}, true
}

// upmix widens a signed 8-bit sample to 16 bits.
func upmix(sample int8) int16 {
	return int16(sample) << 8
}
