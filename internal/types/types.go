package types

import (
	"net/url"
	"strings"
)

// Tone is the writing style requested for the revised resume
type Tone string

const (
	ToneProfessional Tone = "Professional"
	ToneEnthusiastic Tone = "Enthusiastic"
	ToneConcise      Tone = "Concise"
	ToneExecutive    Tone = "Executive"
)

// Tones lists the supported tones in display order
var Tones = []Tone{ToneProfessional, ToneEnthusiastic, ToneConcise, ToneExecutive}

// JobDescriptionType selects which job target field is authoritative
type JobDescriptionType string

const (
	JobDescriptionText JobDescriptionType = "text"
	JobDescriptionLink JobDescriptionType = "link"
)

// ResumeDocument is an uploaded resume file. Data is base64 in JSON.
type ResumeDocument struct {
	Data     []byte `json:"data" validate:"required"`
	MIMEType string `json:"mimeType" validate:"required,oneof=application/pdf"`
	Name     string `json:"name"`
}

// UserInput represents everything the user submits for one workflow run
type UserInput struct {
	ResumeText         string             `json:"resumeText"`
	ResumeFile         *ResumeDocument    `json:"resumeFile,omitempty"`
	JobDescription     string             `json:"jobDescription"`
	JobDescriptionType JobDescriptionType `json:"jobDescriptionType" validate:"required,oneof=text link"`
	JobDescriptionLink string             `json:"jobDescriptionLink,omitempty"`
	Tone               Tone               `json:"tone" validate:"required,oneof=Professional Enthusiastic Concise Executive"`
	Location           string             `json:"location"` // derived from Country and State
	Country            string             `json:"country" validate:"required"`
	State              string             `json:"state"`
}

// Normalize fills derived fields: default tone, default job target type, and the
// display location. The inactive job target field is cleared so exactly one
// source travels with the input.
func (in UserInput) Normalize() UserInput {
	if in.Tone == "" {
		in.Tone = ToneProfessional
	}
	if in.JobDescriptionType == "" {
		in.JobDescriptionType = JobDescriptionText
	}
	switch in.JobDescriptionType {
	case JobDescriptionText:
		in.JobDescriptionLink = ""
	case JobDescriptionLink:
		in.JobDescription = ""
	}
	if in.Location == "" {
		in.Location = DeriveLocation(in.Country, in.State)
	}
	return in
}

// HasDocument reports whether a resume file is attached
func (in UserInput) HasDocument() bool {
	return in.ResumeFile != nil && len(in.ResumeFile.Data) > 0
}

// DeriveLocation builds the display location: "state, country", or the country
// alone when no state is selected.
func DeriveLocation(country, state string) string {
	country = strings.TrimSpace(country)
	state = strings.TrimSpace(state)
	if country == "" {
		return ""
	}
	if state == "" {
		return country
	}
	return state + ", " + country
}

// OptimizationResult is the structured output of the resume rewrite
type OptimizationResult struct {
	RevisedResume   string   `json:"revisedResume"`   // Markdown
	MatchScore      int      `json:"matchScore"`      // 0-100
	KeyImprovements []string `json:"keyImprovements"` // Ordered
	MissingKeywords []string `json:"missingKeywords"`
	Summary         string   `json:"summary"`
}

// WebReference is a web page consulted by the search tool
type WebReference struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Hostname returns the host part of the URI, or the URI itself when it does not parse
func (w WebReference) Hostname() string {
	u, err := url.Parse(w.URI)
	if err != nil || u.Hostname() == "" {
		return w.URI
	}
	return u.Hostname()
}

// GroundingChunk is a citation returned with a search-grounded response
type GroundingChunk struct {
	Web *WebReference `json:"web,omitempty"`
}

// JobSearchResponse is the job search output: markdown text plus citations
type JobSearchResponse struct {
	Text            string           `json:"text"`
	GroundingChunks []GroundingChunk `json:"groundingChunks"`
}

// WebReferences returns the chunks that carry a web reference, in order
func (r JobSearchResponse) WebReferences() []WebReference {
	refs := make([]WebReference, 0, len(r.GroundingChunks))
	for _, chunk := range r.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			refs = append(refs, *chunk.Web)
		}
	}
	return refs
}
