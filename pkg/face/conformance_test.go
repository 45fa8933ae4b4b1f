package face

import (
	"strings"
	"testing"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

// testVectorOneSeed returns the 32-byte BLAKE3 hash of the literal string
// "sigaid-test-vector-1", the fixed input every conformance run of this
// renderer starts from.
func testVectorOneSeed(t *testing.T) [32]byte {
	t.Helper()
	return sigcrypto.Hash([]byte("sigaid-test-vector-1"))
}

// TestToVectorGraphicTestVectorOneIsWellFormedAndDeterministic exercises the
// fixed conformance input end to end: derive the seed, extract params,
// render at size 128 without animation, and confirm the result is stable
// across independently-constructed Faces. A literal byte-for-byte fixture
// captured from a real renderer run would pin this further; that capture
// needs an actual execution of this code, which this harness cannot do on
// its own, so the TODO below names the concrete follow-up instead of
// pretending this test already closes the gap.
func TestToVectorGraphicTestVectorOneIsWellFormedAndDeterministic(t *testing.T) {
	seed := testVectorOneSeed(t)

	a := FromBytes(seed)
	b := FromBytes(seed)
	if a.Params() != b.Params() {
		t.Fatalf("test-vector-1 seed produced different params across constructions: %+v vs %+v", a.Params(), b.Params())
	}

	svgA := a.ToVectorGraphic(128, false)
	svgB := b.ToVectorGraphic(128, false)
	if svgA != svgB {
		t.Fatal("test-vector-1 rendering is not deterministic across constructions")
	}
	if !strings.HasPrefix(svgA, "<svg") || !strings.HasSuffix(svgA, "</svg>") {
		t.Fatalf("test-vector-1 rendering is not well-formed SVG: %s", svgA)
	}
	if !strings.Contains(svgA, `width="128"`) {
		t.Fatal("test-vector-1 rendering did not honor size=128")
	}
	// animated=false must omit the scan-overlay and animation group this
	// renderer only emits when asked to animate.
	if strings.Contains(svgA, `class="anim"`) {
		t.Fatal("test-vector-1 rendering included animation markup despite animated=false")
	}

	// TODO: once a real run of this renderer (and, ideally, of the Python
	// reference) is available, pin svgA against the captured bytes here
	// instead of only checking structural invariants.
}

// TestExtractParamsTestVectorOneIndicesAreInRange locks down the one part of
// scenario 6 fully checkable by inspection of ExtractParams' own modulo
// arithmetic: every categorical index it derives from the test-vector-1
// seed must address a real table entry, for every table the renderer reads.
func TestExtractParamsTestVectorOneIndicesAreInRange(t *testing.T) {
	seed := testVectorOneSeed(t)
	p := ExtractParams(seed)

	checks := []struct {
		name string
		idx  int
		n    int
	}{
		{"PaletteIdx", p.PaletteIdx, len(PALETTES)},
		{"FaceShapeIdx", p.FaceShapeIdx, len(FACE_SHAPES)},
		{"EyeStyleIdx", p.EyeStyleIdx, len(EYE_STYLES)},
		{"EyeExprIdx", p.EyeExprIdx, len(EYE_EXPRESSIONS)},
		{"MouthStyleIdx", p.MouthStyleIdx, len(MOUTH_STYLES)},
		{"CrownStyleIdx", p.CrownStyleIdx, len(CROWN_STYLES)},
		{"ForeheadIdx", p.ForeheadIdx, len(FOREHEAD_MARKS)},
		{"CheekIdx", p.CheekIdx, len(CHEEK_PATTERNS)},
		{"ChinIdx", p.ChinIdx, len(CHIN_FEATURES)},
		{"SideIdx", p.SideIdx, len(SIDE_ACCESSORIES)},
		{"BgIdx", p.BgIdx, len(BG_STYLES)},
		{"AuraIdx", p.AuraIdx, len(AURA_STYLES)},
	}
	for _, c := range checks {
		if c.idx < 0 || c.idx >= c.n {
			t.Fatalf("%s = %d out of range [0,%d)", c.name, c.idx, c.n)
		}
	}
}
