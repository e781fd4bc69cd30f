package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"limn-workers/internal/common/logger"
)

const (
	seedFieldID   = "seed"
	randomSeed    = -1
	maxRandomSeed = 1_000_000_000
)

// Schedule fields take a Deforum keyframe string instead of a bare number.
// "strenght_schedule" is the spelling older templates still use.
var scheduleFieldIDs = map[string]bool{
	"strength_schedule":  true,
	"strenght_schedule":  true,
	"cfg_scale_schedule": true,
}

var emptyObject = json.RawMessage(`{}`)

// Filler substitutes field values into workflow templates. It holds no
// per-call state and is safe for concurrent use.
type Filler struct {
	logger logger.Logger
	seed   func() int64
}

type Option func(*Filler)

// WithSeedSource replaces the generator used when seed is -1. fn must be
// safe for concurrent use.
func WithSeedSource(fn func() int64) Option {
	return func(f *Filler) {
		if fn != nil {
			f.seed = fn
		}
	}
}

func NewFiller(log logger.Logger, opts ...Option) *Filler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	f := &Filler{
		logger: log,
		seed:   func() int64 { return rand.Int63n(maxRandomSeed) },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fill parses a JSON template and substitutes every configured field.
func (f *Filler) Fill(template []byte, fields []FieldConfig, values Values) (*FilledWorkflow, error) {
	doc, err := decode(template)
	if err != nil {
		return nil, &ParseError{Text: string(template), Err: err}
	}
	return f.FillDocument(doc, fields, values)
}

// FillDocument substitutes into an already decoded template. The template is
// not modified.
func (f *Filler) FillDocument(template interface{}, fields []FieldConfig, values Values) (*FilledWorkflow, error) {
	p, err := f.plan(fields, values)
	if err != nil {
		return nil, err
	}

	substituted := p.apply(template)

	text, err := encode(substituted)
	if err != nil {
		return nil, &ParseError{Text: fmt.Sprintf("%v", substituted), Err: err}
	}
	doc, err := decode(text)
	if err != nil {
		return nil, &ParseError{Text: string(text), Err: err}
	}
	if normalizeDimensions(doc) {
		if text, err = encode(doc); err != nil {
			return nil, &ParseError{Text: fmt.Sprintf("%v", doc), Err: err}
		}
	}

	warnings := p.diagnostics()
	for _, d := range warnings {
		f.logger.Warn("workflow substitution warning", map[string]interface{}{
			"kind":        string(d.Kind),
			"fieldId":     d.FieldID,
			"placeholder": d.Placeholder,
			"message":     d.Message,
		})
	}

	f.logger.Debug("workflow template filled", map[string]interface{}{
		"fields":   len(fields),
		"rules":    len(p.order),
		"warnings": len(warnings),
	})

	return &FilledWorkflow{Document: doc, JSON: text, Warnings: warnings}, nil
}

// plan resolves every field into substitution rules. Passes run in a fixed
// order and the first rule registered for a token wins.
func (f *Filler) plan(fields []FieldConfig, values Values) (*plan, error) {
	p := newPlan()

	for _, field := range fields {
		if !field.Type.IsDimension() {
			continue
		}
		format := defaultFormat
		if v, ok := lookup(field, values); ok {
			format = stringValue(v)
		} else if field.Required {
			return nil, &MissingValueError{FieldID: field.ID}
		}
		width, height := ParseFormat(format)
		for _, r := range dimensionRules(field.ID, width, height) {
			p.add(r)
		}
	}

	for _, field := range fields {
		if !field.Type.IsNumeric() {
			continue
		}
		if err := f.addScalar(p, field, values); err != nil {
			return nil, err
		}
	}

	for _, field := range fields {
		switch {
		case field.Type.IsDimension(), field.Type.IsNumeric(),
			field.Type == FieldTypePrompts, field.Type == FieldTypeCamera:
			continue
		}
		v, ok := lookupText(field, values)
		if !ok {
			if field.Required {
				return nil, &MissingValueError{FieldID: field.ID}
			}
			p.leave(field.ID, field.Placeholder)
			continue
		}
		s := stringValue(v)
		if field.Prefix != "" {
			s = field.Prefix + " " + s
		}
		p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: s, text: s, embed: true})
	}

	if field, ok := firstOfType(fields, FieldTypePrompts); ok {
		if err := addPrompts(p, field, values); err != nil {
			return nil, err
		}
	}

	if field, ok := firstOfType(fields, FieldTypeCamera); ok {
		if err := addCamera(p, field, values); err != nil {
			return nil, err
		}
	}

	p.compile()
	return p, nil
}

func (f *Filler) addScalar(p *plan, field FieldConfig, values Values) error {
	v, ok := lookup(field, values)
	if !ok {
		if field.Required {
			return &MissingValueError{FieldID: field.ID}
		}
		p.leave(field.ID, field.Placeholder)
		return nil
	}

	lit, num, err := numberLiteral(v)
	if err != nil {
		return &MalformedValueError{FieldID: field.ID, Value: v, Err: err}
	}
	if field.ID == seedFieldID && num == randomSeed {
		lit = strconv.FormatInt(f.seed(), 10)
	}

	if scheduleFieldIDs[field.ID] {
		schedule := "0: (" + lit + ")"
		p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: schedule, text: schedule, embed: true})
		return nil
	}
	p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: json.Number(lit), text: lit, embed: true})
	return nil
}

// addPrompts inlines the prompts object in place of a whole-leaf token.
// Undecodable values become {} with a diagnostic.
func addPrompts(p *plan, field FieldConfig, values Values) error {
	v, ok := lookup(field, values)
	if !ok {
		if field.Required {
			return &MissingValueError{FieldID: field.ID}
		}
		p.recover(field, &PromptsDecodeError{FieldID: field.ID})
		return nil
	}

	switch t := v.(type) {
	case map[string]interface{}:
		p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: t})
	case string:
		raw := strings.TrimSpace(t)
		decoded, err := decode([]byte(raw))
		if err == nil {
			if _, isObject := decoded.(map[string]interface{}); !isObject {
				err = fmt.Errorf("expected a JSON object, got %T", decoded)
			}
		}
		if err != nil {
			p.recover(field, &PromptsDecodeError{FieldID: field.ID, Value: t, Err: err})
			return nil
		}
		p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: json.RawMessage(raw)})
	default:
		p.recover(field, &PromptsDecodeError{
			FieldID: field.ID,
			Value:   stringValue(v),
			Err:     fmt.Errorf("unsupported prompts value %T", v),
		})
	}
	return nil
}

func addCamera(p *plan, field FieldConfig, values Values) error {
	v, ok := lookup(field, values)
	if !ok {
		if field.Required {
			return &MissingValueError{FieldID: field.ID}
		}
		return nil
	}

	components, err := cameraComponents(v)
	if err != nil {
		return &MalformedValueError{FieldID: field.ID, Value: v, Err: err}
	}
	for _, ct := range cameraTokens {
		c, present := components[ct.key]
		if !present || isEmpty(c) {
			p.leave(field.ID, ct.token)
			continue
		}
		lit, _, err := numberLiteral(c)
		if err != nil {
			return &MalformedValueError{FieldID: field.ID + "." + ct.key, Value: c, Err: err}
		}
		p.add(rule{fieldID: field.ID, token: ct.token, leaf: lit, text: lit, embed: true})
	}
	return nil
}

func firstOfType(fields []FieldConfig, t FieldType) (FieldConfig, bool) {
	for _, field := range fields {
		if field.Type == t {
			return field, true
		}
	}
	return FieldConfig{}, false
}

// rule replaces token. A string leaf equal to token becomes leaf; when embed
// is set, occurrences inside longer strings become text.
type rule struct {
	fieldID string
	token   string
	leaf    interface{}
	text    string
	embed   bool
}

type watched struct {
	fieldID string
	token   string
}

type plan struct {
	rules     map[string]rule
	order     []rule
	pending   []watched
	watch     []watched
	found     map[string]bool
	recovered []Diagnostic
	replacer  *strings.Replacer
}

func newPlan() *plan {
	return &plan{
		rules: make(map[string]rule),
		found: make(map[string]bool),
	}
}

func (p *plan) add(r rule) {
	if r.token == "" {
		return
	}
	if _, exists := p.rules[r.token]; exists {
		return
	}
	p.rules[r.token] = r
	p.order = append(p.order, r)
}

// leave marks a configured token that has no value.
func (p *plan) leave(fieldID, token string) {
	if token != "" {
		p.pending = append(p.pending, watched{fieldID: fieldID, token: token})
	}
}

func (p *plan) recover(field FieldConfig, err *PromptsDecodeError) {
	p.add(rule{fieldID: field.ID, token: field.Placeholder, leaf: emptyObject})
	p.recovered = append(p.recovered, Diagnostic{
		Kind:        DiagnosticPromptsDecode,
		FieldID:     field.ID,
		Placeholder: field.Placeholder,
		Message:     err.Error(),
		Err:         err,
	})
}

func (p *plan) compile() {
	embedded := make([]rule, 0, len(p.order))
	for _, r := range p.order {
		if r.embed {
			embedded = append(embedded, r)
		} else {
			p.watch = append(p.watch, watched{fieldID: r.fieldID, token: r.token})
		}
	}

	// Longest tokens first so W='${W}' wins over ${W} at the same offset.
	sort.SliceStable(embedded, func(i, j int) bool {
		return len(embedded[i].token) > len(embedded[j].token)
	})
	if len(embedded) > 0 {
		pairs := make([]string, 0, len(embedded)*2)
		for _, r := range embedded {
			pairs = append(pairs, r.token, r.text)
		}
		p.replacer = strings.NewReplacer(pairs...)
	}

	seen := make(map[string]bool, len(p.pending))
	for _, w := range p.pending {
		if _, resolved := p.rules[w.token]; resolved || seen[w.token] {
			continue
		}
		seen[w.token] = true
		p.watch = append(p.watch, w)
	}
}

// apply returns a substituted copy of node. Map keys are left alone.
func (p *plan) apply(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			out[key] = p.apply(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = p.apply(child)
		}
		return out
	case string:
		if r, ok := p.rules[v]; ok {
			return r.leaf
		}
		for _, w := range p.watch {
			if strings.Contains(v, w.token) {
				p.found[w.token] = true
			}
		}
		if p.replacer != nil {
			return p.replacer.Replace(v)
		}
		return v
	default:
		return v
	}
}

func (p *plan) diagnostics() []Diagnostic {
	out := append([]Diagnostic(nil), p.recovered...)
	for _, w := range p.watch {
		if !p.found[w.token] {
			continue
		}
		warning := &IncompleteSubstitutionWarning{FieldID: w.fieldID, Placeholder: w.token}
		out = append(out, Diagnostic{
			Kind:        DiagnosticIncompleteSubstitution,
			FieldID:     w.fieldID,
			Placeholder: w.token,
			Message:     warning.Error(),
			Err:         warning,
		})
	}
	return out
}

// decode parses exactly one JSON value, keeping numbers as json.Number.
func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
