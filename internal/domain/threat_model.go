package domain

import (
	"strings"
	"time"
)

// Framework names a threat modeling methodology.
type Framework string

const (
	FrameworkSTRIDE      Framework = "STRIDE"
	FrameworkLINDDUN     Framework = "LINDDUN"
	FrameworkPASTA       Framework = "PASTA"
	FrameworkAttackTrees Framework = "Attack Trees"

	// frameworkAttackTreesAlias is accepted on input and canonicalized.
	frameworkAttackTreesAlias = "ATTACK_TREES"
)

// MaxContentLength bounds the analysed content in characters.
const MaxContentLength = 50000

// ValidFramework reports whether s is an accepted framework spelling.
func ValidFramework(s string) bool {
	switch s {
	case string(FrameworkSTRIDE), string(FrameworkLINDDUN), string(FrameworkPASTA),
		string(FrameworkAttackTrees), frameworkAttackTreesAlias:
		return true
	}
	return false
}

// CanonicalFramework maps accepted spellings to one canonical value.
// Empty input defaults to STRIDE.
func CanonicalFramework(s string) Framework {
	switch s {
	case "":
		return FrameworkSTRIDE
	case frameworkAttackTreesAlias:
		return FrameworkAttackTrees
	}
	return Framework(s)
}

func normalizeContent(s string) string {
	return strings.TrimSpace(s)
}

// ThreatModelRequest is the synchronous threat model request.
type ThreatModelRequest struct {
	Content     string    `json:"content" binding:"required,max=50000,safecontent"`
	Framework   Framework `json:"framework" binding:"omitempty,framework"`
	FileID      string    `json:"file_id,omitempty" binding:"omitempty,hexid"`
	LLMProvider string    `json:"llm_provider,omitempty"`
}

// Normalize trims content and fills defaults in place.
func (r *ThreatModelRequest) Normalize() {
	r.Content = normalizeContent(r.Content)
	r.Framework = CanonicalFramework(string(r.Framework))
}

// ThreatModelResult is a generated threat model plus its provenance.
type ThreatModelResult struct {
	ID               string    `json:"id"`
	ThreatModel      string    `json:"threat_model"`
	EstimatedCost    float64   `json:"estimated_cost"`
	ProviderUsed     Provider  `json:"provider_used"`
	Framework        Framework `json:"framework"`
	ContentAnalyzed  string    `json:"content_analyzed"`
	GeneratedAt      time.Time `json:"generated_at"`
	ProcessingTimeMs *int64    `json:"processing_time_ms,omitempty"`
}
