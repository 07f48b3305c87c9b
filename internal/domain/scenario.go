package domain

// CompanySize classifies the organisation in a scenario.
type CompanySize string

const (
	CompanySizeSmall      CompanySize = "small"
	CompanySizeMedium     CompanySize = "medium"
	CompanySizeLarge      CompanySize = "large"
	CompanySizeEnterprise CompanySize = "enterprise"
)

// ThreatActor is the adversary simulated by a scenario.
type ThreatActor string

const (
	ThreatActorAPT           ThreatActor = "apt"
	ThreatActorRansomware    ThreatActor = "ransomware"
	ThreatActorInsider       ThreatActor = "insider"
	ThreatActorHacktivist    ThreatActor = "hacktivist"
	ThreatActorCybercriminal ThreatActor = "cybercriminal"
	ThreatActorCompetitor    ThreatActor = "competitor"
)

const (
	DefaultScenarioType  = "ransomware"
	DefaultDurationHours = 2
	DefaultParticipant   = "Security Team"
)

// ScenarioRequest describes the tabletop exercise to generate.
type ScenarioRequest struct {
	CompanyName   string      `json:"company_name" binding:"required,max=200"`
	Industry      string      `json:"industry" binding:"required,max=200"`
	CompanySize   CompanySize `json:"company_size" binding:"required,oneof=small medium large enterprise"`
	Technologies  []string    `json:"technologies"`
	ThreatActor   ThreatActor `json:"threat_actor" binding:"required,oneof=apt ransomware insider hacktivist cybercriminal competitor"`
	ScenarioType  string      `json:"scenario_type"`
	Participants  []string    `json:"participants"`
	DurationHours int         `json:"duration_hours" binding:"omitempty,min=1,max=8"`
	LLMProvider   string      `json:"llm_provider,omitempty"`
}

// Normalize fills defaults in place.
func (r *ScenarioRequest) Normalize() {
	if r.ScenarioType == "" {
		r.ScenarioType = DefaultScenarioType
	}
	if len(r.Participants) == 0 {
		r.Participants = []string{DefaultParticipant}
	}
	if r.DurationHours == 0 {
		r.DurationHours = DefaultDurationHours
	}
}

// ScenarioResult is a generated scenario.
type ScenarioResult struct {
	ID            string   `json:"id"`
	Scenario      string   `json:"scenario"`
	EstimatedCost float64  `json:"estimated_cost"`
	ProviderUsed  Provider `json:"provider_used"`
}

// RerollSectionRequest asks for one section of a scenario to be rewritten.
type RerollSectionRequest struct {
	OriginalScenario string                 `json:"original_scenario" binding:"required"`
	SectionTitle     string                 `json:"section_title" binding:"required"`
	SectionContent   string                 `json:"section_content" binding:"required"`
	Context          map[string]interface{} `json:"context" binding:"required"`
	LLMProvider      string                 `json:"llm_provider,omitempty"`
}

// RerollSectionResult carries the regenerated section.
type RerollSectionResult struct {
	SectionTitle  string   `json:"section_title"`
	NewContent    string   `json:"new_content"`
	EstimatedCost float64  `json:"estimated_cost"`
	ProviderUsed  Provider `json:"provider_used"`
}
