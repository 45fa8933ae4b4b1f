package face

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func seedBytes(fill byte) [32]byte {
	var b [32]byte
	for i := range b {
		b[i] = fill + byte(i)
	}
	return b
}

func TestTotalCombinationsMatchesSpec(t *testing.T) {
	const want = 2378170368000
	if got := TotalCombinations(); got != want {
		t.Fatalf("TotalCombinations() = %d, want %d", got, want)
	}
}

func TestFromBytesIsDeterministic(t *testing.T) {
	seed := seedBytes(7)
	a := FromBytes(seed)
	b := FromBytes(seed)

	if a.Params() != b.Params() {
		t.Fatalf("identical seeds produced different params: %+v vs %+v", a.Params(), b.Params())
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("identical seeds produced different fingerprints")
	}
	svgA := a.ToVectorGraphic(256, true)
	svgB := b.ToVectorGraphic(256, true)
	if svgA != svgB {
		t.Fatal("identical seeds produced different SVG output")
	}
}

func TestFromHexAndBase64RoundTripFromBytes(t *testing.T) {
	seed := seedBytes(3)
	ref := FromBytes(seed)

	hexFace, err := FromHex(hex.EncodeToString(seed[:]))
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if hexFace.Params() != ref.Params() {
		t.Fatal("FromHex did not reproduce the same params as FromBytes")
	}

	b64Face, err := FromBase64(base64.StdEncoding.EncodeToString(seed[:]))
	if err != nil {
		t.Fatalf("FromBase64: %v", err)
	}
	if b64Face.Params() != ref.Params() {
		t.Fatal("FromBase64 did not reproduce the same params as FromBytes")
	}
}

func TestFromSliceRejectsWrongLength(t *testing.T) {
	if _, err := FromSlice(make([]byte, 31)); err == nil {
		t.Fatal("expected error for 31-byte input")
	}
	if _, err := FromSlice(make([]byte, 33)); err == nil {
		t.Fatal("expected error for 33-byte input")
	}
}

func TestSimilarityIsZeroForIdenticalFaces(t *testing.T) {
	f := FromBytes(seedBytes(11))
	if sim := f.Similarity(f); sim != 0 {
		t.Fatalf("Similarity(a, a) = %v, want 0", sim)
	}
}

func TestSimilarityIsSymmetricAndBounded(t *testing.T) {
	a := FromBytes(seedBytes(1))
	b := FromBytes(seedBytes(200))

	sab := a.Similarity(b)
	sba := b.Similarity(a)
	if sab != sba {
		t.Fatalf("Similarity not symmetric: %v vs %v", sab, sba)
	}
	if sab < 0 || sab > 1 {
		t.Fatalf("Similarity out of range: %v", sab)
	}
}

func TestDescribeAndFullDescriptionAreNonEmpty(t *testing.T) {
	f := FromBytes(seedBytes(42))
	if strings.TrimSpace(f.Describe()) == "" {
		t.Fatal("Describe returned empty string")
	}
	full := f.FullDescription()
	for _, want := range []string{"palette:", "face_shape:", "fingerprint:"} {
		if !strings.Contains(full, want) {
			t.Fatalf("FullDescription missing %q: %s", want, full)
		}
	}
}

func TestToVectorGraphicProducesWellFormedSVG(t *testing.T) {
	f := FromBytes(seedBytes(99))
	svg := f.ToVectorGraphic(512, true)
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("ToVectorGraphic did not produce a well-formed document: %s", svg)
	}
	if !strings.Contains(svg, `width="512"`) {
		t.Fatal("ToVectorGraphic did not honor the requested size")
	}
}

func TestFingerprintIsEightHexChars(t *testing.T) {
	f := FromBytes(seedBytes(5))
	fp := f.Fingerprint()
	if len(fp) != 8 {
		t.Fatalf("Fingerprint length = %d, want 8", len(fp))
	}
}
