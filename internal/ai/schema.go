package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// optimizationResponseSchema is sent with the request so the model answers in JSON
var optimizationResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"revisedResume": {
			Type:        genai.TypeString,
			Description: "The full content of the revised resume in Markdown format. Follow the formatting instructions strictly.",
		},
		"matchScore": {
			Type:        genai.TypeInteger,
			Description: "A deterministic score (0-100) calculated strictly based on the percentage of hard skills and experience requirements matched. Do not estimate randomly.",
		},
		"keyImprovements": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "A list of specific changes made to the resume to better align with the job.",
		},
		"missingKeywords": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Keywords found in the job description that were missing or weak in the original resume.",
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "A brief executive summary of why these changes improve the candidate's chances.",
		},
	},
	Required: []string{"revisedResume", "matchScore", "keyImprovements", "missingKeywords", "summary"},
}

// optimizationResultJSONSchema checks the response on receipt. The model is
// asked for the same shape but nothing guarantees it.
const optimizationResultJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["revisedResume", "matchScore", "keyImprovements", "missingKeywords", "summary"],
  "properties": {
    "revisedResume": {"type": "string", "minLength": 1},
    "matchScore": {"type": "integer", "minimum": 0, "maximum": 100},
    "keyImprovements": {"type": "array", "items": {"type": "string"}},
    "missingKeywords": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"}
  }
}`

var optimizationSchemaLoader = gojsonschema.NewStringLoader(optimizationResultJSONSchema)

// parseOptimizationResult validates raw model output and decodes it. Any
// violation is an AIResponseError whose "fields" context names the failing fields.
func parseOptimizationResult(raw string) (*types.OptimizationResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.NewAIResponseError(errors.ErrCodeAIEmptyResponse, "No response generated from AI", nil)
	}

	result, err := gojsonschema.Validate(optimizationSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, errors.NewAIResponseError(errors.ErrCodeAIResponseInvalid, "AI response is not valid JSON", err)
	}

	if !result.Valid() {
		fields, messages := describeSchemaErrors(result.Errors())
		return nil, errors.NewAIResponseError(errors.ErrCodeAIResponseInvalid,
			fmt.Sprintf("AI response failed schema validation: %s", strings.Join(messages, "; ")), nil).
			WithContext("fields", fields)
	}

	// matchScore may arrive as 78.0, which the schema accepts as an integer
	var decoded struct {
		RevisedResume   string   `json:"revisedResume"`
		MatchScore      float64  `json:"matchScore"`
		KeyImprovements []string `json:"keyImprovements"`
		MissingKeywords []string `json:"missingKeywords"`
		Summary         string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.NewAIResponseError(errors.ErrCodeAIResponseInvalid, "Failed to decode AI response", err)
	}

	return &types.OptimizationResult{
		RevisedResume:   decoded.RevisedResume,
		MatchScore:      int(decoded.MatchScore),
		KeyImprovements: decoded.KeyImprovements,
		MissingKeywords: decoded.MissingKeywords,
		Summary:         decoded.Summary,
	}, nil
}

// describeSchemaErrors returns the sorted unique field names and one message per error
func describeSchemaErrors(resultErrors []gojsonschema.ResultError) ([]string, []string) {
	seen := make(map[string]bool)
	var fields []string
	messages := make([]string, 0, len(resultErrors))

	for _, re := range resultErrors {
		field := re.Field()
		// A missing required property is reported against its parent
		if re.Type() == "required" {
			if property, ok := re.Details()["property"].(string); ok {
				field = property
			}
		}
		// Array items are reported as field.N
		if i := strings.Index(field, "."); i > 0 {
			field = field[:i]
		}
		if !seen[field] {
			seen[field] = true
			fields = append(fields, field)
		}
		messages = append(messages, fmt.Sprintf("%s: %s", field, re.Description()))
	}

	sort.Strings(fields)
	return fields, messages
}
