package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultDimension = 1024
	defaultFormat    = "1024, 1024"

	widthToken  = "${W}"
	heightToken = "${H}"
)

// ParseFormat splits a "W, H" string into width and height. Each part falls
// back to 1024 when it has no positive leading integer.
func ParseFormat(format string) (int, int) {
	parts := strings.Split(format, ",")
	width := leadingInt(parts[0])
	height := defaultDimension
	if len(parts) > 1 {
		height = leadingInt(parts[1])
	}
	return width, height
}

func leadingInt(s string) int {
	n, ok := parseLeadingInt(s)
	if !ok || n <= 0 {
		return defaultDimension
	}
	return n
}

// parseLeadingInt reads an optionally signed integer prefix, ignoring
// surrounding whitespace and any trailing text.
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalizeDimensions coerces string W/H entries of deforum_settings, at the
// root or under "input", to integers. It reports whether anything changed.
func normalizeDimensions(doc interface{}) bool {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return false
	}
	candidates := []interface{}{root["deforum_settings"]}
	if input, ok := root["input"].(map[string]interface{}); ok {
		candidates = append(candidates, input["deforum_settings"])
	}

	changed := false
	for _, candidate := range candidates {
		settings, ok := candidate.(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range []string{"W", "H"} {
			s, ok := settings[key].(string)
			if !ok {
				continue
			}
			if n, ok := parseLeadingInt(s); ok {
				settings[key] = json.Number(strconv.Itoa(n))
				changed = true
			}
		}
	}
	return changed
}

// dimensionRules covers the three template spellings of the width/height
// tokens: a whole leaf, the W='${W}' assignment and a bare token.
func dimensionRules(fieldID string, width, height int) []rule {
	w, h := strconv.Itoa(width), strconv.Itoa(height)
	return []rule{
		{fieldID: fieldID, token: widthToken, leaf: width, text: w, embed: true},
		{fieldID: fieldID, token: heightToken, leaf: height, text: h, embed: true},
		{fieldID: fieldID, token: "W='" + widthToken + "'", leaf: "W=" + w, text: "W=" + w, embed: true},
		{fieldID: fieldID, token: "H='" + heightToken + "'", leaf: "H=" + h, text: "H=" + h, embed: true},
	}
}

var cameraTokens = []struct {
	key   string
	token string
}{
	{"x", "${TRANSLATION_X}"},
	{"y", "${TRANSLATION_Y}"},
	{"z", "${TRANSLATION_Z}"},
	{"center_x", "${TRANSFORM_CENTER_X}"},
	{"center_y", "${TRANSFORM_CENTER_Y}"},
	{"rotation_x", "${ROTATION_3D_X}"},
	{"rotation_y", "${ROTATION_3D_Y}"},
	{"rotation_z", "${ROTATION_3D_Z}"},
}

// cameraComponents normalises a camera value into its named components.
// Missing components are absent from the result.
func cameraComponents(v interface{}) (map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case Camera:
		return t.components(), nil
	case *Camera:
		if t == nil {
			return nil, nil
		}
		return t.components(), nil
	default:
		return nil, fmt.Errorf("camera value must be an object, got %T", v)
	}
}

func (c Camera) components() map[string]interface{} {
	return map[string]interface{}{
		"x":          c.X,
		"y":          c.Y,
		"z":          c.Z,
		"center_x":   c.CenterX,
		"center_y":   c.CenterY,
		"rotation_x": c.RotationX,
		"rotation_y": c.RotationY,
		"rotation_z": c.RotationZ,
	}
}
