package face

import "testing"

// These are the reference output streams from Matsumoto and Nishimura's own
// mt19937ar.c distribution (mt19937ar.out), independent of this package:
// seeding with the single word 5489 (mt19937ar.c's own default seed) and
// seeding with the four-word array {0x123, 0x234, 0x345, 0x456} both have
// published first-ten-output sequences that every conforming port reproduces
// exactly. Matching them here is what lets this renderer's seeding claim be
// checked against the algorithm itself, not just against its own past runs.
func TestMT19937SimpleSeedMatchesReferenceVector(t *testing.T) {
	want := []uint32{
		3499211612, 581869302, 3890346734, 3586334585, 545404204,
		4161255391, 3922919429, 949333985, 2715962298, 1323567403,
	}
	m := NewMT19937FromSeed(5489)
	for i, w := range want {
		if got := m.NextUint32(); got != w {
			t.Fatalf("output %d = %d, want %d", i, got, w)
		}
	}
}

func TestMT19937ArraySeedMatchesReferenceVector(t *testing.T) {
	want := []uint32{
		1067595299, 955945823, 477289528, 4107686914, 4228976476,
		3344332714, 3355579695, 227628506, 810200273, 2591290167,
	}
	m := NewMT19937FromArray([]uint32{0x123, 0x234, 0x345, 0x456})
	for i, w := range want {
		if got := m.NextUint32(); got != w {
			t.Fatalf("output %d = %d, want %d", i, got, w)
		}
	}
}

// NewMT19937FromWordSeed must route every seed that fits in one 32-bit word
// through the simple path, matching the named face seeds (pattern/circuit/
// particle/effect), each a uint16.
func TestNewMT19937FromWordSeedUsesSimplePathForSingleWord(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00, 0x15, 0xB3} // 5555
	viaWordSeed := NewMT19937FromWordSeed(raw)
	viaDirect := NewMT19937FromSeed(5555)
	for i := 0; i < 8; i++ {
		a, b := viaWordSeed.NextUint32(), viaDirect.NextUint32()
		if a != b {
			t.Fatalf("output %d diverged: %d vs %d", i, a, b)
		}
	}
}

func TestNewMT19937FromWordSeedUsesArrayPathForMultiWord(t *testing.T) {
	raw := make([]byte, 8)
	raw[3] = 1 // word[0] = 1
	raw[7] = 2 // word[1] = 2
	viaWordSeed := NewMT19937FromWordSeed(raw)
	viaDirect := NewMT19937FromArray([]uint32{1, 2})
	for i := 0; i < 8; i++ {
		a, b := viaWordSeed.NextUint32(), viaDirect.NextUint32()
		if a != b {
			t.Fatalf("output %d diverged: %d vs %d", i, a, b)
		}
	}
}

func TestRandomDoubleStaysInUnitInterval(t *testing.T) {
	m := NewMT19937FromSeed(1)
	for i := 0; i < 1024; i++ {
		d := m.RandomDouble()
		if d < 0 || d >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, d)
		}
	}
}

func TestChoiceIndexNeverReturnsOutOfRange(t *testing.T) {
	m := NewMT19937FromSeed(42)
	for i := 0; i < 1024; i++ {
		idx := m.ChoiceIndex(7)
		if idx < 0 || idx >= 7 {
			t.Fatalf("draw %d out of range: %d", i, idx)
		}
	}
}
