package types

import (
	"strings"
	"testing"

	"careerlaunch/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleResume = strings.Repeat("Senior engineer with Go experience. ", 18)
	sampleJob    = strings.Repeat("We need a backend engineer. ", 11)
)

func validInput() UserInput {
	return UserInput{
		ResumeText:         sampleResume,
		JobDescription:     sampleJob,
		JobDescriptionType: JobDescriptionText,
		Tone:               ToneProfessional,
		Country:            "Canada",
		State:              "Ontario",
	}
}

func TestDeriveLocation(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		state    string
		expected string
	}{
		{"country and state", "Canada", "Ontario", "Ontario, Canada"},
		{"country only", "Germany", "", "Germany"},
		{"no country", "", "Ontario", ""},
		{"whitespace trimmed", " India ", " Kerala ", "Kerala, India"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveLocation(tt.country, tt.state))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := UserInput{
		JobDescription:     "leftover text",
		JobDescriptionType: JobDescriptionLink,
		JobDescriptionLink: "https://jobs.example.com/1",
		Country:            "Canada",
	}

	out := in.Normalize()
	assert.Equal(t, ToneProfessional, out.Tone)
	assert.Equal(t, "Canada", out.Location)
	assert.Empty(t, out.JobDescription)
	assert.Equal(t, "https://jobs.example.com/1", out.JobDescriptionLink)

	// explicit location is kept
	in.Location = "Toronto, Canada"
	assert.Equal(t, "Toronto, Canada", in.Normalize().Location)
}

func TestValidate(t *testing.T) {
	pdf := &ResumeDocument{Data: []byte("%PDF-1.4"), MIMEType: "application/pdf", Name: "cv.pdf"}

	tests := []struct {
		name       string
		mutate     func(in *UserInput)
		wantValid  bool
		wantFields []string
	}{
		{"valid text input", func(in *UserInput) {}, true, nil},
		{"document instead of text", func(in *UserInput) { in.ResumeText = ""; in.ResumeFile = pdf }, true, nil},
		{"short resume without document", func(in *UserInput) { in.ResumeText = "too short" }, false, []string{"resumeText"}},
		{"resume of exactly 20 chars", func(in *UserInput) { in.ResumeText = strings.Repeat("a", 20) }, false, []string{"resumeText"}},
		{"both resume sources", func(in *UserInput) { in.ResumeFile = pdf }, false, []string{"resumeText"}},
		{"short job description", func(in *UserInput) { in.JobDescription = "short" }, false, []string{"jobDescription"}},
		{"valid link", func(in *UserInput) {
			in.JobDescriptionType = JobDescriptionLink
			in.JobDescriptionLink = "https://x.io/j"
		}, true, nil},
		{"short link", func(in *UserInput) {
			in.JobDescriptionType = JobDescriptionLink
			in.JobDescriptionLink = "x.io"
		}, false, []string{"jobDescriptionLink"}},
		{"missing country", func(in *UserInput) { in.Country = "" }, false, []string{"country"}},
		{"unknown tone", func(in *UserInput) { in.Tone = "Casual" }, false, []string{"tone"}},
		{"non pdf document", func(in *UserInput) {
			in.ResumeText = ""
			in.ResumeFile = &ResumeDocument{Data: []byte("hello"), MIMEType: "text/plain"}
		}, false, []string{"mimeType"}},
		{"everything empty", func(in *UserInput) {
			in.ResumeText = ""
			in.JobDescription = ""
			in.Country = ""
		}, false, []string{"country", "resumeText", "jobDescription"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := in.Validate()
			if tt.wantValid {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			appErr := err.(*errors.AppError)
			assert.Equal(t, errors.ErrCodeInputInvalid, appErr.Code)
			assert.ElementsMatch(t, tt.wantFields, appErr.Context["fields"])
		})
	}
}

func TestLocationCatalogue(t *testing.T) {
	countries := Countries()
	require.Len(t, countries, 8)
	assert.Equal(t, "United States", countries[0])

	states, ok := StatesOf("canada")
	require.True(t, ok)
	assert.Contains(t, states, "Ontario")

	_, ok = StatesOf("Atlantis")
	assert.False(t, ok)

	// returned slices are copies
	states[0] = "changed"
	again, _ := StatesOf("Canada")
	assert.Equal(t, "Alberta", again[0])

	assert.Len(t, LocationCatalogue(), 8)
}

func TestWebReferences(t *testing.T) {
	resp := JobSearchResponse{
		Text: "jobs",
		GroundingChunks: []GroundingChunk{
			{Web: &WebReference{URI: "https://www.linkedin.com/jobs/view/1", Title: "Backend Engineer"}},
			{},
			{Web: &WebReference{URI: ""}},
		},
	}

	refs := resp.WebReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, "www.linkedin.com", refs[0].Hostname())
	assert.Equal(t, "not a url", WebReference{URI: "not a url"}.Hostname())
}
