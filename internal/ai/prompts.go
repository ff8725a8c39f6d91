package ai

import (
	"strings"

	"careerlaunch/internal/config"
)

// Placeholders substituted into instructions before they are sent
const (
	PlaceholderTone          = "{{tone}}"
	PlaceholderLocation      = "{{location}}"
	PlaceholderLocationRules = "{{locationRules}}"
	PlaceholderURL           = "{{url}}"
)

// DefaultOptimizeInstruction is the instruction block sent ahead of the resume and job description
const DefaultOptimizeInstruction = `You are an expert Career Coach and Resume Writer.

**TASK:**
Rewrite the candidate's resume to match the Target Job Description.

**CRITICAL FORMATTING RULES (Markdown):**
1.  **NAME**: Must be the Title (H1). It must be **BOLD** and **UPPERCASE**.
2.  **SECTIONS**: Use the following headers (H2): **SUMMARY**, **SKILLS**, **EXPERIENCE**, **EDUCATION**.
3.  **HEADER STYLE**: All H2 headers must be **BOLD** and **UPPERCASE**.
4.  **SPACING**: Add a blank line after every header and between every list item.
5.  **CONTENT**:
    - **SUMMARY**: Write a strong professional summary targeting the job.
    - **SKILLS**: List hard and soft skills relevant to the job.
    - **EXPERIENCE**: Rewrite bullet points to include keywords from the job description. Use action verbs and quantify results.
    - **EDUCATION**: List degrees and certifications clearly.

**Example Format:**
# **JOHN DOE**

## **SUMMARY**
Experienced software engineer...

## **SKILLS**
- JavaScript
- React

## **EXPERIENCE**
...

**Desired Tone:** {{tone}}`

// DefaultSearchJobsInstruction is the recruiter instruction used for the job search
const DefaultSearchJobsInstruction = `You are an expert Tech Recruiter.

**TASK:**
Search for currently ACTIVE, GENUINE job listings that match the candidate's profile based on the optimized resume.

{{locationRules}}

**SEARCH STRATEGY:**
- Use the Google Search tool.
- **Explicitly use the location "{{location}}" in your search queries.**

**OUTPUT LOGIC:**
- Goal: Find exactly 5 high-quality matches.
- **If you find fewer than 5 matching SAFE jobs in the CORRECT LOCATION:**
  - List ONLY the valid ones found.
  - START your response with this exact phrase (bold): "**We found only [number] active jobs in [Location] that match your criteria.**" followed by a brief advice on broadening the search.
- **If you find 5 matches:**
  - Start with "**Here are the top 5 active job listings matching your profile in [Location]:**"

**JOB LISTING FORMAT (Markdown):**
For each job, use this layout:

### **[Job Title]**
**Company:** [Company Name]
**Location:** [City, Country]
**Match Reason:** [1 sentence explaining why]

---`

// ExplicitLocationRules restricts the search to the user's chosen location
const ExplicitLocationRules = `**CRITICAL LOCATION RULES (MUST FOLLOW):**
1.  **User Target Location:** "{{location}}".
2.  **GEOGRAPHIC BOUNDARY:**
    - You MUST restrict search results to the **Same Country** as the location provided.
    - DO NOT show jobs from other countries.
3.  **PROXIMITY PRIORITY (Closer is Better):**
    - **Priority 1:** Jobs in the exact city "{{location}}".
    - **Priority 2:** Jobs in the surrounding region/state.
    - **Priority 3:** Remote jobs within the same country.
4.  **Spam Protection:** ONLY include listings from reputable platforms (LinkedIn, Indeed, Glassdoor, Wellfound, Official Company Sites, Y Combinator).
    - VERIFY the job is currently active.
    - FILTER OUT vague "confidential" listings, "easy apply" spam, or suspected scams.`

// InferredLocationRules asks the model to infer the location from the resume
const InferredLocationRules = `**CRITICAL LOCATION RULES:**
The user did not specify a location.
1.  **INFER LOCATION:** Analyze the resume to find the candidate's current City and Country.
2.  **SCOPE:** Restrict all search results to that inferred **COUNTRY**.
3.  **PROXIMITY:** Prioritize jobs closer to their inferred city.`

// DefaultResolveURLInstruction asks the model to read a job posting link
const DefaultResolveURLInstruction = `Navigate to this URL: {{url}} and find the job posting. Provide a comprehensive summary of the Job Title, Company, Responsibilities, Requirements, and Qualifications listed on the page. If the page is not accessible, search for the job posting details based on the URL keywords.`

// Content part labels
const (
	resumeDocumentLabel = "Candidate Resume Document:"
	resumeTextLabel     = "Candidate Resume Text:\n"
	jobDescriptionLabel = "Target Job Description:\n"
	resumeContextLabel  = "Optimized Resume Context:\n"
)

var defaultInstructions = map[string]string{
	config.OperationOptimize:   DefaultOptimizeInstruction,
	config.OperationSearchJobs: DefaultSearchJobsInstruction,
	config.OperationResolveURL: DefaultResolveURLInstruction,
}

// PromptSource supplies instruction overrides. *config.PromptStore implements it.
type PromptSource interface {
	Get(operation string) (string, bool)
}

// instructionFor returns the override for operation when one is loaded, the default otherwise
func instructionFor(prompts PromptSource, operation string) string {
	if prompts != nil {
		if instruction, ok := prompts.Get(operation); ok {
			return instruction
		}
	}
	return defaultInstructions[operation]
}

// renderInstruction substitutes placeholders; unknown placeholders are left as they are
func renderInstruction(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for placeholder, value := range values {
		pairs = append(pairs, placeholder, value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// locationRules picks the explicit or inferred rule block
func locationRules(location string) string {
	if strings.TrimSpace(location) == "" {
		return InferredLocationRules
	}
	return ExplicitLocationRules
}

// buildOptimizeInstruction renders the optimize instruction for a tone
func buildOptimizeInstruction(prompts PromptSource, tone string) string {
	return renderInstruction(instructionFor(prompts, config.OperationOptimize), map[string]string{
		PlaceholderTone: tone,
	})
}

// buildSearchJobsInstruction renders the job search instruction. The location
// rules are expanded first so their own placeholder is filled in the same pass.
func buildSearchJobsInstruction(prompts PromptSource, location string) string {
	template := strings.ReplaceAll(instructionFor(prompts, config.OperationSearchJobs), PlaceholderLocationRules, locationRules(location))
	return renderInstruction(template, map[string]string{
		PlaceholderLocation: location,
	})
}

// buildResolveURLInstruction renders the link resolution instruction
func buildResolveURLInstruction(prompts PromptSource, url string) string {
	return renderInstruction(instructionFor(prompts, config.OperationResolveURL), map[string]string{
		PlaceholderURL: url,
	})
}
