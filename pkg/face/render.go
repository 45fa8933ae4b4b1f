package face

import (
	"fmt"
	"strings"
)

const (
	canvasSize = 200
	center     = canvasSize / 2
)

type renderer struct {
	b    *strings.Builder
	p    Params
	pal  Palette
	seed [32]byte
}

func newRenderer(seed [32]byte, p Params, pal Palette) *renderer {
	return &renderer{b: &strings.Builder{}, p: p, pal: pal, seed: seed}
}

func (r *renderer) write(format string, args ...any) {
	fmt.Fprintf(r.b, format, args...)
}

func f(v float64) string { return FormatFloat(v) }

// rngFor installs the named per-subcomponent seed and nothing else. Named
// seeds are 16 bits wide, so they always take the simple seeding path; the
// installed value must be the raw seed itself, not a derived mixture, or
// output diverges from every other conformant implementation.
func (r *renderer) rngFor(seed uint16) *MT19937 {
	return NewMT19937FromSeed(uint32(seed))
}

func (r *renderer) defs() string {
	var s strings.Builder
	fmt.Fprintf(&s, `<defs><radialGradient id="glow" cx="50%%" cy="50%%" r="50%%">`+
		`<stop offset="0%%" stop-color="%s" stop-opacity="%s"/>`+
		`<stop offset="100%%" stop-color="%s" stop-opacity="0"/>`+
		`</radialGradient></defs>`, r.pal.Glow, f(r.p.GlowIntensity), r.pal.Glow)
	return s.String()
}

func (r *renderer) animations(speed float64) string {
	return fmt.Sprintf(`<g class="anim" data-speed="%s"></g>`, f(speed))
}

func (r *renderer) background() string {
	style := BG_STYLES[r.p.BgIdx]
	rng := r.rngFor(r.p.ParticleSeed)
	var s strings.Builder
	fmt.Fprintf(&s, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, canvasSize, canvasSize, r.pal.Bg)
	switch style {
	case "particles", "data_rain", "matrix_code":
		n := r.p.ParticleDensity
		for i := 0; i < n; i++ {
			x := rng.RandInt(0, canvasSize)
			y := rng.RandInt(0, canvasSize)
			fmt.Fprintf(&s, `<circle cx="%d" cy="%d" r="1" fill="%s" opacity="0.4"/>`, x, y, r.pal.Secondary)
		}
	case "hex_grid", "circuit":
		for i := 0; i < 6; i++ {
			x := rng.RandInt(0, canvasSize)
			y := rng.RandInt(0, canvasSize)
			fmt.Fprintf(&s, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="0.5" opacity="0.3"/>`,
				x, y, x+rng.RandInt(-20, 20), y+rng.RandInt(-20, 20), r.pal.Secondary)
		}
	case "void":
		// intentionally bare: a void background is just the fill above.
	}
	return s.String()
}

func (r *renderer) aura() string {
	style := AURA_STYLES[r.p.AuraIdx]
	radius := 90.0 * r.p.GlowIntensity
	switch style {
	case "double_ring":
		return fmt.Sprintf(`<circle cx="%d" cy="%d" r="%s" fill="none" stroke="%s" stroke-width="1"/>`+
			`<circle cx="%d" cy="%d" r="%s" fill="none" stroke="%s" stroke-width="0.5"/>`,
			center, center, f(radius), r.pal.Glow, center, center, f(radius*0.85), r.pal.Accent)
	case "glitch":
		rng := r.rngFor(r.p.EffectSeed)
		dx := rng.Uniform(-3, 3)
		return fmt.Sprintf(`<circle cx="%s" cy="%d" r="%s" fill="url(#glow)"/>`, f(float64(center)+dx), center, f(radius))
	default:
		return fmt.Sprintf(`<circle cx="%d" cy="%d" r="%s" fill="url(#glow)"/>`, center, center, f(radius))
	}
}

func (r *renderer) preFaceCrown() string {
	style := CROWN_STYLES[r.p.CrownStyleIdx]
	if !preFaceCrowns[style] {
		return ""
	}
	return r.crownVariant(style)
}

func (r *renderer) postFaceCrown() string {
	style := CROWN_STYLES[r.p.CrownStyleIdx]
	if preFaceCrowns[style] || style == "none" {
		return ""
	}
	return r.crownVariant(style)
}

func (r *renderer) crownVariant(style string) string {
	size := r.p.CrownSize
	top := float64(center) - r.p.FaceHeight*size/2 - 10
	switch style {
	case "halo":
		return fmt.Sprintf(`<ellipse cx="%d" cy="%s" rx="%s" ry="4" fill="none" stroke="%s" stroke-width="2"/>`,
			center, f(top), f(20*size), r.pal.Accent)
	case "flames":
		rng := r.rngFor(r.p.EffectSeed)
		var s strings.Builder
		for i := 0; i < 5; i++ {
			dx := float64(i-2) * 6 * size
			h := rng.Uniform(8, 16)
			fmt.Fprintf(&s, `<path d="M %s %s L %s %s L %s %s Z" fill="%s"/>`,
				f(float64(center)+dx-3), f(top), f(float64(center)+dx), f(top-h), f(float64(center)+dx+3), f(top), r.pal.Primary)
		}
		return s.String()
	case "data_cloud":
		rng := r.rngFor(r.p.ParticleSeed)
		var s strings.Builder
		for i := 0; i < 8; i++ {
			dx := rng.Uniform(-20, 20) * size
			dy := rng.Uniform(-8, 4)
			fmt.Fprintf(&s, `<rect x="%s" y="%s" width="2" height="2" fill="%s"/>`, f(float64(center)+dx), f(top+dy), r.pal.Secondary)
		}
		return s.String()
	case "antenna_single":
		return fmt.Sprintf(`<line x1="%d" y1="%s" x2="%d" y2="%s" stroke="%s" stroke-width="2"/><circle cx="%d" cy="%s" r="3" fill="%s"/>`,
			center, f(top), center, f(top-15*size), r.pal.Primary, center, f(top-15*size), r.pal.Accent)
	case "antenna_dual":
		return fmt.Sprintf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>`+
			`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>`,
			f(float64(center)-8), f(top), f(float64(center)-8), f(top-12*size), r.pal.Primary,
			f(float64(center)+8), f(top), f(float64(center)+8), f(top-12*size), r.pal.Primary)
	case "horns":
		return fmt.Sprintf(`<path d="M %s %s L %s %s L %s %s Z" fill="%s"/><path d="M %s %s L %s %s L %s %s Z" fill="%s"/>`,
			f(float64(center)-15), f(top), f(float64(center)-18), f(top-14*size), f(float64(center)-10), f(top), r.pal.Secondary,
			f(float64(center)+15), f(top), f(float64(center)+18), f(top-14*size), f(float64(center)+10), f(top), r.pal.Secondary)
	default:
		rng := r.rngFor(r.p.PatternSeed)
		var s strings.Builder
		n := 3 + rng.RandInt(0, 3)
		for i := 0; i < n; i++ {
			dx := (float64(i) - float64(n-1)/2) * 8 * size
			fmt.Fprintf(&s, `<rect x="%s" y="%s" width="3" height="6" fill="%s"/>`, f(float64(center)+dx), f(top), r.pal.Primary)
		}
		return s.String()
	}
}

func (r *renderer) faceShape() string {
	shape := FACE_SHAPES[r.p.FaceShapeIdx]
	w, h := r.p.FaceWidth, r.p.FaceHeight
	cx, cy := float64(center), float64(center)
	switch shape {
	case "oval", "pill":
		return fmt.Sprintf(`<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s" stroke="%s" stroke-width="1.5"/>`,
			f(cx), f(cy), f(w/2), f(h/2), r.pal.Bg, r.pal.Primary)
	case "diamond", "star":
		return fmt.Sprintf(`<path d="M %s %s L %s %s L %s %s L %s %s Z" fill="%s" stroke="%s" stroke-width="1.5"/>`,
			f(cx), f(cy-h/2), f(cx+w/2), f(cy), f(cx), f(cy+h/2), f(cx-w/2), f(cy), r.pal.Bg, r.pal.Primary)
	default:
		return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s" rx="8" fill="%s" stroke="%s" stroke-width="1.5"/>`,
			f(cx-w/2), f(cy-h/2), f(w), f(h), r.pal.Bg, r.pal.Primary)
	}
}

func (r *renderer) foreheadMark() string {
	mark := FOREHEAD_MARKS[r.p.ForeheadIdx]
	if mark == "none" {
		return ""
	}
	size := r.p.MarkSize
	cx, cy := float64(center), float64(center)-r.p.FaceHeight*0.28
	return fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="1"/>`,
		f(cx), f(cy), f(4*size), r.pal.Accent)
}

func (r *renderer) eyes() string {
	size := r.p.EyeSize
	spacing := r.p.EyeSpacing
	cy := float64(center) - r.p.FaceHeight*0.05
	left := float64(center) - spacing/2
	right := float64(center) + spacing/2

	expr := EYE_EXPRESSIONS[r.p.EyeExprIdx]
	ry := size / 2
	if expr == "wide" || expr == "shock" {
		ry *= 1.3
	} else if expr == "narrow" || expr == "squint" {
		ry *= 0.6
	}

	var s strings.Builder
	fmt.Fprintf(&s, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s"/>`, f(left), f(cy), f(size/2), f(ry), r.pal.Primary)
	fmt.Fprintf(&s, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s"/>`, f(right), f(cy), f(size/2), f(ry), r.pal.Primary)
	return s.String()
}

func (r *renderer) cheeks() string {
	pattern := CHEEK_PATTERNS[r.p.CheekIdx]
	if pattern == "none" {
		return ""
	}
	rng := r.rngFor(r.p.PatternSeed)
	cy := float64(center) + r.p.FaceHeight*0.1
	var s strings.Builder
	for _, side := range []float64{-1, 1} {
		cx := float64(center) + side*r.p.FaceWidth*0.38
		n := 2 + rng.RandInt(0, 2)
		for i := 0; i < n; i++ {
			dy := float64(i) * 4
			fmt.Fprintf(&s, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="0.8"/>`,
				f(cx-2), f(cy+dy), f(cx+2), f(cy+dy), r.pal.Secondary)
		}
	}
	return s.String()
}

func (r *renderer) mouth() string {
	style := MOUTH_STYLES[r.p.MouthStyleIdx]
	w := r.p.MouthWidth
	cx, cy := float64(center), float64(center)+r.p.FaceHeight*0.3
	switch style {
	case "smile_arc", "pixel_smile":
		return fmt.Sprintf(`<path d="M %s %s Q %s %s %s %s" fill="none" stroke="%s" stroke-width="1.5"/>`,
			f(cx-w/2), f(cy), f(cx), f(cy+6), f(cx+w/2), f(cy), r.pal.Primary)
	case "minimal", "silent":
		return fmt.Sprintf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="1.5"/>`,
			f(cx-w/2), f(cy), f(cx+w/2), f(cy), r.pal.Primary)
	default:
		rng := r.rngFor(r.p.PatternSeed)
		var s strings.Builder
		bars := 5
		for i := 0; i < bars; i++ {
			x := cx - w/2 + (w/float64(bars-1))*float64(i)
			h := rng.Uniform(2, 6)
			fmt.Fprintf(&s, `<rect x="%s" y="%s" width="1.5" height="%s" fill="%s"/>`, f(x), f(cy-h/2), f(h), r.pal.Primary)
		}
		return s.String()
	}
}

func (r *renderer) chin() string {
	feature := CHIN_FEATURES[r.p.ChinIdx]
	if feature == "none" {
		return ""
	}
	cx, cy := float64(center), float64(center)+r.p.FaceHeight*0.46
	return fmt.Sprintf(`<rect x="%s" y="%s" width="6" height="2" fill="%s"/>`, f(cx-3), f(cy), r.pal.Secondary)
}

func (r *renderer) sideAccessories() string {
	accessory := SIDE_ACCESSORIES[r.p.SideIdx]
	if accessory == "none" {
		return ""
	}
	size := r.p.AccessorySize
	cy := float64(center)
	var s strings.Builder
	drawLeft := strings.Contains(accessory, "left") || accessory == "earpiece_both" || !strings.Contains(accessory, "right")
	drawRight := strings.Contains(accessory, "right") || accessory == "earpiece_both"
	if drawLeft {
		fmt.Fprintf(&s, `<rect x="%s" y="%s" width="%s" height="8" fill="%s"/>`,
			f(float64(center)-r.p.FaceWidth/2-4*size), f(cy-4), f(4*size), r.pal.Secondary)
	}
	if drawRight {
		fmt.Fprintf(&s, `<rect x="%s" y="%s" width="%s" height="8" fill="%s"/>`,
			f(float64(center)+r.p.FaceWidth/2), f(cy-4), f(4*size), r.pal.Secondary)
	}
	return s.String()
}

func (r *renderer) scanOverlay() string {
	return fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="none" stroke="%s" stroke-width="0.5" opacity="0.2"/>`,
		canvasSize, canvasSize, r.pal.Glow)
}

// Render composes the fixed-viewport document in the fixed subcomponent
// order required for cross-implementation determinism.
func (r *renderer) Render(size int, animated bool) string {
	r.write(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, canvasSize, canvasSize, size, size)
	r.write(r.defs())
	if animated {
		r.write(r.animations(r.p.AnimationSpeed))
	}
	r.write(r.background())
	r.write(r.aura())
	r.write(r.preFaceCrown())
	r.write(r.faceShape())
	r.write(r.foreheadMark())
	r.write(r.eyes())
	r.write(r.cheeks())
	r.write(r.mouth())
	r.write(r.chin())
	r.write(r.sideAccessories())
	r.write(r.postFaceCrown())
	if animated {
		r.write(r.scanOverlay())
	}
	r.write(`</svg>`)
	return r.b.String()
}
