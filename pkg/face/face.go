package face

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

// Face is the deterministic visual identity derived from exactly 32 input
// bytes. Two Faces built from the same bytes are byte-identical in every
// field; Face never mutates its seed after construction.
type Face struct {
	seed   [32]byte
	params Params
}

// FromBytes builds a Face from exactly 32 raw bytes.
func FromBytes(b [32]byte) *Face {
	return &Face{seed: b, params: ExtractParams(b)}
}

// FromSlice builds a Face from a byte slice that must be exactly 32 bytes
// long, typically an agent's public key or a state entry hash.
func FromSlice(b []byte) (*Face, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("face: input must be 32 bytes, got %d", len(b))
	}
	var arr [32]byte
	copy(arr[:], b)
	return FromBytes(arr), nil
}

// FromHex builds a Face from a 64-character hex string.
func FromHex(s string) (*Face, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("face: invalid hex: %w", err)
	}
	return FromSlice(raw)
}

// FromBase64 builds a Face from a standard or raw-url base64 string.
func FromBase64(s string) (*Face, error) {
	s = strings.TrimSpace(s)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("face: invalid base64: %w", err)
		}
	}
	return FromSlice(raw)
}

// Params returns the extracted, immutable parameter set that drives
// rendering. Callers must not mutate the returned value's meaning — it is
// returned by value precisely so they can't affect this Face's state.
func (face *Face) Params() Params {
	return face.params
}

// Palette returns the color scheme this Face draws with.
func (face *Face) Palette() Palette {
	return PALETTES[face.params.PaletteIdx]
}

// ToVectorGraphic renders the face as a self-contained SVG document at the
// given pixel size, optionally including the animation/scan-overlay layers.
func (face *Face) ToVectorGraphic(size int, animated bool) string {
	r := newRenderer(face.seed, face.params, face.Palette())
	return r.Render(size, animated)
}

// Fingerprint is an 8 hex character digest over the face's 32 input bytes,
// suitable for a short human-facing identity marker.
func (face *Face) Fingerprint() string {
	h := sigcrypto.Hash(face.seed[:])
	return hex.EncodeToString(h[:4])
}

// Describe returns a short, one-line human-readable summary of the face's
// most visually salient categorical choices.
func (face *Face) Describe() string {
	p := face.params
	return fmt.Sprintf("%s %s face, %s eyes, %s mouth, %s crown",
		face.Palette().Name, FACE_SHAPES[p.FaceShapeIdx], EYE_STYLES[p.EyeStyleIdx],
		MOUTH_STYLES[p.MouthStyleIdx], CROWN_STYLES[p.CrownStyleIdx])
}

// FullDescription returns every categorical choice, one per line, for
// diagnostic and audit-log use.
func (face *Face) FullDescription() string {
	p := face.params
	var s strings.Builder
	fmt.Fprintf(&s, "palette: %s\n", face.Palette().Name)
	fmt.Fprintf(&s, "face_shape: %s\n", FACE_SHAPES[p.FaceShapeIdx])
	fmt.Fprintf(&s, "eye_style: %s\n", EYE_STYLES[p.EyeStyleIdx])
	fmt.Fprintf(&s, "eye_expression: %s\n", EYE_EXPRESSIONS[p.EyeExprIdx])
	fmt.Fprintf(&s, "mouth_style: %s\n", MOUTH_STYLES[p.MouthStyleIdx])
	fmt.Fprintf(&s, "crown_style: %s\n", CROWN_STYLES[p.CrownStyleIdx])
	fmt.Fprintf(&s, "forehead_mark: %s\n", FOREHEAD_MARKS[p.ForeheadIdx])
	fmt.Fprintf(&s, "cheek_pattern: %s\n", CHEEK_PATTERNS[p.CheekIdx])
	fmt.Fprintf(&s, "chin_feature: %s\n", CHIN_FEATURES[p.ChinIdx])
	fmt.Fprintf(&s, "side_accessory: %s\n", SIDE_ACCESSORIES[p.SideIdx])
	fmt.Fprintf(&s, "background: %s\n", BG_STYLES[p.BgIdx])
	fmt.Fprintf(&s, "aura: %s\n", AURA_STYLES[p.AuraIdx])
	fmt.Fprintf(&s, "fingerprint: %s\n", face.Fingerprint())
	return s.String()
}

// categoricalIndices returns the twelve categorical selections in a fixed
// order, used by Similarity.
func (face *Face) categoricalIndices() [12]int {
	p := face.params
	return [12]int{
		p.PaletteIdx, p.FaceShapeIdx, p.EyeStyleIdx, p.EyeExprIdx, p.MouthStyleIdx, p.CrownStyleIdx,
		p.ForeheadIdx, p.CheekIdx, p.ChinIdx, p.SideIdx, p.BgIdx, p.AuraIdx,
	}
}

// Similarity returns the fraction, in [0, 1], of the twelve categorical
// selections two faces disagree on: 0 means identical, 1 means every
// category differs.
func (face *Face) Similarity(other *Face) float64 {
	a := face.categoricalIndices()
	b := other.categoricalIndices()
	diff := 0
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}
	return float64(diff) / float64(len(a))
}
