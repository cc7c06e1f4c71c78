package ai

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/dispute_triage/backend/internal/models"
)

//go:embed schema/verdict.schema.json
var verdictSchemaJSON string

var verdictSchema = jsonschema.MustCompileString("verdict.schema.json", verdictSchemaJSON)

var (
	errNoCandidate  = errors.New("no JSON object found in model output")
	errUnknownRisk  = errors.New("unrecognised risk_level")
	errEmptyPayload = errors.New("empty model output")
)

// parseStage proposes a decoded object for raw model text. Stages never fail;
// they report ok=false and the chain moves on.
type parseStage struct {
	name string
	run  func(cleaned string) (map[string]any, bool)
}

var parseStages = []parseStage{
	{name: "fenced-json", run: decodeObject},
	{name: "literal", run: decodeLiteralPayload},
	{name: "brace-slice", run: decodeBraceSlice},
}

// ParseVerdict recovers a verdict from raw model output. The returned error is
// always a *ParseError carrying raw.
func ParseVerdict(raw string) (models.Verdict, error) {
	cleaned := cleanFence(raw)
	if cleaned == "" {
		return models.Verdict{}, &ParseError{Raw: raw, Err: errEmptyPayload}
	}

	lastErr := errNoCandidate
	for _, stage := range parseStages {
		candidate, ok := stage.run(cleaned)
		if !ok {
			continue
		}
		v, err := verdictFromObject(candidate)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", stage.name, err)
			continue
		}
		return v, nil
	}
	return models.Verdict{}, &ParseError{Raw: raw, Err: lastErr}
}

// cleanFence strips a leading ``` fence with an optional language tag and a
// trailing ``` fence.
func cleanFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = text[3:]
		i := 0
		for i < len(text) && (text[i] >= 'a' && text[i] <= 'z' || text[i] >= 'A' && text[i] <= 'Z') {
			i++
		}
		text = text[i:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func decodeObject(text string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func decodeLiteralPayload(text string) (map[string]any, bool) {
	v, err := decodeLiteral(text)
	if err != nil {
		var y any
		if yerr := yaml.Unmarshal([]byte(text), &y); yerr != nil {
			return nil, false
		}
		v = normalizeYAML(y)
	}
	if m, ok := v.(map[string]any); ok {
		if _, isVerdict := m["classification"]; isVerdict {
			return m, true
		}
	}
	inner := cleanFence(extractText(v))
	if inner == "" {
		return nil, false
	}
	return decodeObject(inner)
}

func decodeBraceSlice(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject(text[start : end+1])
}

// extractText pulls the text payload out of nested content: strings are kept,
// lists are concatenated and maps contribute their "text" entry.
func extractText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, item := range t {
			b.WriteString(extractText(item))
		}
		return b.String()
	case map[string]any:
		text, ok := t["text"]
		if !ok {
			return ""
		}
		return extractText(text)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return t
	}
}

type verdictWire struct {
	Classification    string   `json:"classification"`
	Summary           string   `json:"summary"`
	FraudSignals      []string `json:"fraud_signals"`
	RiskLevel         string   `json:"risk_level"`
	FinancialExposure string   `json:"financial_exposure"`
	RecommendedAction string   `json:"recommended_action"`
	ReasoningSteps    []string `json:"reasoning_steps"`
}

func verdictFromObject(obj map[string]any) (models.Verdict, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return models.Verdict{}, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return models.Verdict{}, err
	}
	if err := verdictSchema.Validate(generic); err != nil {
		return models.Verdict{}, err
	}

	var w verdictWire
	if err := json.Unmarshal(b, &w); err != nil {
		return models.Verdict{}, err
	}
	risk, ok := models.NormalizeRiskLevel(w.RiskLevel)
	if !ok {
		return models.Verdict{}, fmt.Errorf("%w: %q", errUnknownRisk, w.RiskLevel)
	}
	classification, _ := models.NormalizeClassification(w.Classification)

	v := models.Verdict{
		Classification:    classification,
		Summary:           strings.TrimSpace(w.Summary),
		FraudSignals:      nonNil(w.FraudSignals),
		RiskLevel:         risk,
		FinancialExposure: strings.TrimSpace(w.FinancialExposure),
		RecommendedAction: models.NormalizeAction(w.RecommendedAction),
		ReasoningSteps:    nonNil(w.ReasoningSteps),
	}
	if v.FinancialExposure == "" {
		v.FinancialExposure = models.ExposureUnknown
	}
	if v.Summary == "" {
		v.Summary = fmt.Sprintf("Model classified the dispute as '%s'.", v.Classification)
	}
	return v, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
