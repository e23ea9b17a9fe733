package random

// Scripted replays fixed draws in order. Once a queue is exhausted it keeps
// returning the fallback (0 for floats, 0 for ints). Used by tests and by
// tooling that needs to replay a recorded run.
type Scripted struct {
	Floats []float64
	Ints   []int
}

// Float64 pops the next scripted float.
func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	f := s.Floats[0]
	s.Floats = s.Floats[1:]
	return f
}

// IntN pops the next scripted int, reduced modulo n.
func (s *Scripted) IntN(n int) int {
	if n <= 0 {
		panic("random: invalid argument to IntN")
	}
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < 0 {
		v = -v
	}
	return v % n
}
