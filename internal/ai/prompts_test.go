package ai

import (
	"strings"
	"testing"

	"careerlaunch/internal/config"

	"github.com/stretchr/testify/assert"
)

type mapPrompts map[string]string

func (m mapPrompts) Get(operation string) (string, bool) {
	v, ok := m[operation]
	return v, ok
}

func TestInstructionOverrides(t *testing.T) {
	prompts := mapPrompts{
		config.OperationOptimize:   "Rewrite it. Tone: {{tone}}. Keep {{unknown}}.",
		config.OperationSearchJobs: "Find jobs. {{locationRules}} Near {{location}}.",
	}

	assert.Equal(t, "Rewrite it. Tone: Executive. Keep {{unknown}}.", buildOptimizeInstruction(prompts, "Executive"))

	search := buildSearchJobsInstruction(prompts, "Ontario, Canada")
	assert.True(t, strings.HasPrefix(search, "Find jobs. **CRITICAL LOCATION RULES (MUST FOLLOW):**"))
	assert.True(t, strings.HasSuffix(search, "Near Ontario, Canada."))
	assert.Contains(t, search, `Jobs in the exact city "Ontario, Canada".`)

	assert.Equal(t, strings.Replace(DefaultResolveURLInstruction, "{{url}}", "https://x.io/1", 1),
		buildResolveURLInstruction(prompts, "https://x.io/1"))
}

func TestInstructionDefaults(t *testing.T) {
	var store *config.PromptStore

	optimize := buildOptimizeInstruction(store, "Professional")
	assert.True(t, strings.HasPrefix(optimize, "You are an expert Career Coach and Resume Writer."))
	assert.Contains(t, optimize, "# **JOHN DOE**")
	assert.NotContains(t, optimize, "{{")

	search := buildSearchJobsInstruction(nil, "  ")
	assert.Contains(t, search, InferredLocationRules)
	assert.Contains(t, search, "**Here are the top 5 active job listings matching your profile in [Location]:**")
	assert.Contains(t, search, "### **[Job Title]**")
}
