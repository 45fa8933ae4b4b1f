// Package face implements the deterministic visual-identity renderer: a
// pure function from 32 input bytes to a vector-graphic document, built so
// that independent implementations in different language ecosystems
// produce byte-identical output for the same input. Every categorical
// table, the MT19937 PRNG, and the floating-point formatting rule are
// frozen contracts — changing any of them changes what every agent's face
// looks like.
package face

// Palette is one of the twenty fixed color schemes a face can be drawn in.
type Palette struct {
	Name      string
	Primary   string
	Secondary string
	Accent    string
	Glow      string
	Bg        string
}

// PALETTES has exactly 20 entries; selection is PALETTES[b[0] % 20].
var PALETTES = []Palette{
	{"Cyan", "#00f5ff", "#0088aa", "#00ff88", "#00f5ff", "#0a0a12"},
	{"Matrix", "#00ff41", "#008f11", "#88ff88", "#00ff41", "#0a0f0a"},
	{"Purple", "#bf00ff", "#6600aa", "#ff00ff", "#bf00ff", "#0f0a12"},
	{"Gold", "#ffd700", "#ff8c00", "#ffee88", "#ffd700", "#12100a"},
	{"Ice", "#88ddff", "#4499cc", "#ffffff", "#88ddff", "#0a0c10"},
	{"Rose", "#ff0080", "#aa0055", "#ff88bb", "#ff0080", "#120a0c"},
	{"Emerald", "#00ff88", "#00aa55", "#88ffcc", "#00ff88", "#0a100c"},
	{"Violet", "#8800ff", "#5500aa", "#bb88ff", "#8800ff", "#0c0a12"},
	{"Blood", "#ff2222", "#aa0000", "#ff8888", "#ff2222", "#120a0a"},
	{"Solar", "#ffaa00", "#ff6600", "#ffdd44", "#ffaa00", "#12100a"},
	{"Arctic", "#aaeeff", "#66bbdd", "#ffffff", "#aaeeff", "#0a0e12"},
	{"Toxic", "#aaff00", "#66aa00", "#ddff66", "#aaff00", "#0c100a"},
	{"Sunset", "#ff6644", "#cc3366", "#ffaa88", "#ff6644", "#120c0a"},
	{"Midnight", "#4466ff", "#2233aa", "#8899ff", "#4466ff", "#0a0a14"},
	{"Chrome", "#cccccc", "#888888", "#ffffff", "#cccccc", "#101010"},
	{"Plasma", "#ff00ff", "#00ffff", "#ff88ff", "#ff00ff", "#0f0a10"},
	{"Neon", "#ff00aa", "#ffff00", "#00ffaa", "#ff00aa", "#0a0808"},
	{"Ocean", "#0066cc", "#004488", "#00aaff", "#0088ff", "#080a10"},
	{"Lava", "#ff4400", "#cc2200", "#ffaa00", "#ff6600", "#100808"},
	{"Void", "#6633aa", "#331166", "#9966ff", "#7744cc", "#08060c"},
}

// FACE_SHAPES has exactly 12 entries.
var FACE_SHAPES = []string{
	"oval", "angular", "hexagonal", "diamond", "shield", "heart", "octagonal", "rounded_square",
	"pentagon", "triangle", "pill", "star",
}

// EYE_STYLES has exactly 16 entries.
var EYE_STYLES = []string{
	"holo_ring", "matrix_scan", "data_orb", "cyber_lens", "visor_bar", "split_iris",
	"compound", "target_lock", "energy_slit", "binary_dots", "spiral", "crosshair",
	"scanner_bar", "diamond_core", "pixel_grid", "flame_eye",
}

// EYE_EXPRESSIONS has exactly 8 entries.
var EYE_EXPRESSIONS = []string{"neutral", "wide", "narrow", "tilt_up", "tilt_down", "asymmetric", "squint", "shock"}

// MOUTH_STYLES has exactly 14 entries.
var MOUTH_STYLES = []string{
	"data_stream", "waveform", "minimal", "grid", "vent", "speaker", "binary",
	"smile_arc", "glyph", "silent", "pixel_smile", "teeth_grid", "equalizer", "circuit_mouth",
}

// CROWN_STYLES has exactly 16 entries. The first three variants drawn
// pre-face are halo, flames, and data_cloud; every other style draws
// post-face.
var CROWN_STYLES = []string{
	"none", "antenna_single", "antenna_dual", "horns", "halo", "mohawk_data",
	"floating_orbs", "energy_spikes", "circuit_crown", "visor_top", "flames", "crystals",
	"crown_peaks", "satellite", "wings", "data_cloud",
}

// FOREHEAD_MARKS has exactly 12 entries.
var FOREHEAD_MARKS = []string{
	"none", "third_eye", "symbol_circle", "barcode", "circuit_node", "gem",
	"scanner_line", "binary_row", "hexagon", "omega", "cross", "infinity",
}

// CHEEK_PATTERNS has exactly 10 entries.
var CHEEK_PATTERNS = []string{
	"none", "circuit_lines", "tribal_bars", "dots", "vents", "data_ports",
	"scars", "glyphs", "binary_stream", "wave_lines",
}

// CHIN_FEATURES has exactly 8 entries.
var CHIN_FEATURES = []string{"none", "vent", "light_bar", "beard_lines", "energy_core", "port", "speaker_grille", "data_jack"}

// SIDE_ACCESSORIES has exactly 10 entries.
var SIDE_ACCESSORIES = []string{
	"none", "earpiece_left", "earpiece_right", "earpiece_both", "antenna_side",
	"blade", "coil", "jack", "wing_fins", "data_nodes",
}

// BG_STYLES has exactly 6 entries.
var BG_STYLES = []string{"data_rain", "hex_grid", "circuit", "particles", "void", "matrix_code"}

// AURA_STYLES has exactly 6 entries.
var AURA_STYLES = []string{"glow", "double_ring", "glitch", "holographic", "pulse", "electric"}

// preFaceCrowns names the crown styles drawn before the face shape; every
// other style is drawn in the post-face pass.
var preFaceCrowns = map[string]bool{
	"halo":       true,
	"flames":     true,
	"data_cloud": true,
}

// TotalCombinations is the normative self-check: the product of every
// categorical table's size.
func TotalCombinations() int64 {
	sizes := []int64{
		int64(len(PALETTES)), int64(len(FACE_SHAPES)), int64(len(EYE_STYLES)), int64(len(EYE_EXPRESSIONS)),
		int64(len(MOUTH_STYLES)), int64(len(CROWN_STYLES)), int64(len(FOREHEAD_MARKS)), int64(len(CHEEK_PATTERNS)),
		int64(len(CHIN_FEATURES)), int64(len(SIDE_ACCESSORIES)), int64(len(BG_STYLES)), int64(len(AURA_STYLES)),
	}
	total := int64(1)
	for _, s := range sizes {
		total *= s
	}
	return total
}
