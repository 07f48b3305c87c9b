package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/timmy/threatforge/internal/domain"
)

// ============================================================================
// System Prompt
// ============================================================================

// SystemPrompt sets the persona shared by every provider.
const SystemPrompt = `You are an elite cybersecurity expert with 15+ years of experience in threat modeling, incident response, and security architecture. You specialize in creating highly realistic, technically accurate, and operationally relevant cybersecurity scenarios.

Your expertise includes:
- Advanced persistent threats (APTs) and nation-state actors
- Modern attack techniques (living-off-the-land, supply chain attacks, zero-day exploits)
- Industry-specific threat landscapes and compliance requirements
- Real-world incident response procedures and decision-making frameworks
- Emerging technologies and their security implications

You excel at creating scenarios that:
- Challenge participants with realistic technical and business constraints
- Incorporate current threat intelligence and attack trends
- Provide clear learning objectives and measurable outcomes
- Balance technical depth with executive-level strategic thinking
- Include realistic injects that test both technical skills and leadership decision-making

Always provide scenarios that are actionable, educational, and reflect real-world cybersecurity challenges.`

// ============================================================================
// Threat Model Prompts
// ============================================================================

// DescribeFile renders the uploaded-file summary embedded in threat model prompts.
func DescribeFile(meta *domain.UploadedFile) string {
	if meta == nil {
		return ""
	}
	kind := "Image file"
	if meta.FileType.IsDiagram() {
		kind = "Diagram file"
	}
	return fmt.Sprintf("%s: %s (type: %s)", kind, meta.Filename, meta.FileType)
}

func contentToAnalyze(content, fileDescription string) string {
	if fileDescription == "" {
		return content
	}
	return fmt.Sprintf("Diagram Content:\n%s\n\nAdditional Context:\n%s", fileDescription, content)
}

const threatModelTemplate = `You are a cybersecurity expert performing threat modeling analysis. 

Please analyze the following system using the %[1]s framework:

%[2]s

Generate a comprehensive threat model that includes:

1. **System Overview**: Brief description of the system being analyzed
2. **Asset Identification**: Key assets, data, and components
3. **Threat Actors**: Potential attackers and their motivations
4. **Threat Analysis**: For each asset, identify potential threats using %[1]s:
   - Spoofing: Authentication/identity threats
   - Tampering: Data integrity threats  
   - Repudiation: Non-repudiation threats
   - Information Disclosure: Confidentiality threats
   - Denial of Service: Availability threats
   - Elevation of Privilege: Authorization threats
5. **Risk Assessment**: Rate each threat (High/Medium/Low) based on likelihood and impact
6. **Mitigation Strategies**: Recommended controls and countermeasures
7. **Security Recommendations**: Overall security posture improvements

Format the response in clear sections with actionable insights.`

// ThreatModelPrompt builds the prompt for synchronous generation.
func ThreatModelPrompt(req domain.ThreatModelRequest, fileDescription string) string {
	return fmt.Sprintf(threatModelTemplate, req.Framework, contentToAnalyze(req.Content, fileDescription))
}

const asyncThreatModelTemplate = `# ELITE THREAT MODELING ANALYSIS

## EXECUTIVE SUMMARY
You are a world-class cybersecurity expert with 20+ years of experience in threat modeling, security architecture, and risk assessment. You specialize in identifying sophisticated attack vectors and providing actionable security recommendations.

## ANALYSIS FRAMEWORK
**Primary Framework**: %[1]s
**Analysis Depth**: Comprehensive threat modeling with real-world attack scenarios

## SYSTEM UNDER ANALYSIS
%[2]s

## THREAT MODELING REQUIREMENTS

### 1. SYSTEM ARCHITECTURE ANALYSIS
- **Component Inventory**: Complete mapping of all system components, data flows, and trust boundaries
- **Technology Stack Assessment**: Security implications of each technology choice
- **Integration Points**: External dependencies, APIs, and third-party services
- **Data Classification**: Sensitivity levels and regulatory requirements for all data types

### 2. THREAT ACTOR PROFILING
- **Adversary Types**: Nation-state actors, organized crime, insider threats, hacktivists
- **Capability Assessment**: Technical sophistication, resources, and persistence
- **Motivation Analysis**: Financial gain, espionage, sabotage, reputation damage
- **Attack Surface Mapping**: All potential entry points and attack vectors

### 3. COMPREHENSIVE THREAT ANALYSIS
Using the %[1]s framework, analyze each component for:

#### STRIDE Threats (if applicable):
- **Spoofing**: Identity impersonation, credential theft, session hijacking
- **Tampering**: Data manipulation, code injection, configuration changes
- **Repudiation**: Audit log deletion, transaction denial, evidence destruction
- **Information Disclosure**: Data breaches, information leakage, side-channel attacks
- **Denial of Service**: Resource exhaustion, service disruption, availability attacks
- **Elevation of Privilege**: Privilege escalation, access control bypass, admin compromise

#### Additional Threat Categories:
- **Supply Chain Attacks**: Compromised dependencies, vendor risks, build system attacks
- **Social Engineering**: Phishing, pretexting, baiting, quid pro quo
- **Physical Security**: Physical access, hardware tampering, environmental threats
- **Emerging Threats**: AI/ML attacks, quantum computing risks, zero-day exploits

### 4. RISK ASSESSMENT & PRIORITIZATION
- **Threat Likelihood**: Based on attacker capabilities, system exposure, and historical data
- **Impact Assessment**: Business impact, financial loss, regulatory consequences
- **Risk Scoring**: Quantitative risk assessment using industry-standard methodologies
- **Priority Ranking**: Critical, High, Medium, Low based on likelihood x impact

### 5. MITIGATION STRATEGY DEVELOPMENT
- **Defense in Depth**: Multiple layers of security controls
- **Zero Trust Architecture**: Never trust, always verify principles
- **Security Controls**: Technical, administrative, and physical safeguards
- **Monitoring & Detection**: Real-time threat detection and response capabilities
- **Incident Response**: Preparedness and recovery procedures

### 6. COMPLIANCE & REGULATORY CONSIDERATIONS
- **Industry Standards**: ISO 27001, NIST, CIS Controls, OWASP
- **Regulatory Requirements**: GDPR, HIPAA, SOX, PCI-DSS as applicable
- **Best Practices**: Industry-specific security frameworks and guidelines

## DELIVERABLE FORMAT

Structure your analysis with these sections:

### 1. EXECUTIVE SUMMARY
- Key findings and critical risks
- Overall security posture assessment
- Strategic recommendations

### 2. SYSTEM OVERVIEW
- Architecture description and component mapping
- Data flow analysis and trust boundaries
- Technology stack security assessment

### 3. THREAT LANDSCAPE
- Threat actor profiles and capabilities
- Attack surface analysis
- Historical threat intelligence

### 4. DETAILED THREAT ANALYSIS
- Component-by-component threat assessment
- Specific attack scenarios and vectors
- Vulnerability analysis and exploitability

### 5. RISK ASSESSMENT
- Risk matrix with likelihood and impact
- Priority ranking of threats
- Risk acceptance criteria

### 6. MITIGATION STRATEGIES
- Technical controls and countermeasures
- Process improvements and policies
- Monitoring and detection capabilities

### 7. SECURITY ROADMAP
- Short-term (0-3 months) critical fixes
- Medium-term (3-12 months) improvements
- Long-term (1+ years) strategic initiatives

### 8. COMPLIANCE ASSESSMENT
- Regulatory gap analysis
- Standards compliance status
- Remediation requirements

Ensure your analysis is technically accurate, actionable, and provides clear guidance for security improvement initiatives.`

// AsyncThreatModelPrompt builds the longer prompt used by background jobs.
func AsyncThreatModelPrompt(req domain.ThreatModelJobRequest, fileDescription string) string {
	return fmt.Sprintf(asyncThreatModelTemplate, req.Framework, contentToAnalyze(req.Content, fileDescription))
}

// ============================================================================
// Scenario Prompts
// ============================================================================

const scenarioTemplate = `Create a detailed cybersecurity tabletop exercise scenario with the following parameters:

Company: %s
Industry: %s
Size: %s
Technologies: %s
Threat Actor: %s
Scenario Type: %s
Participants: %s
Duration: %d hours

Please create a realistic scenario that includes:
1. Initial compromise details
2. Attack progression timeline
3. Key decision points for participants
4. Injects (events that occur during exercise)
5. Expected outcomes and lessons learned

Format the response in clear sections.`

// ScenarioPrompt builds the tabletop scenario prompt. req should be normalized.
func ScenarioPrompt(req domain.ScenarioRequest) string {
	technologies := "Standard IT infrastructure"
	if len(req.Technologies) > 0 {
		technologies = strings.Join(req.Technologies, ", ")
	}
	return fmt.Sprintf(scenarioTemplate,
		req.CompanyName,
		req.Industry,
		req.CompanySize,
		technologies,
		req.ThreatActor,
		req.ScenarioType,
		strings.Join(req.Participants, ", "),
		req.DurationHours,
	)
}

const rerollTemplate = `You are revising one section of an existing cybersecurity tabletop exercise scenario.

Exercise parameters:
%s

Full scenario for reference:
"""
%s
"""

Section to rewrite: %s
Current content of that section:
"""
%s
"""

Write a fresh version of the "%s" section only. Keep it consistent with the rest of the scenario and the exercise parameters, but take a different angle from the current content. Return just the new section body without the heading.`

// RerollSectionPrompt builds the prompt that regenerates one scenario section.
func RerollSectionPrompt(req domain.RerollSectionRequest) string {
	return fmt.Sprintf(rerollTemplate,
		formatContext(req.Context),
		req.OriginalScenario,
		req.SectionTitle,
		req.SectionContent,
		req.SectionTitle,
	)
}

// formatContext renders the original form data as sorted "key: value" lines.
func formatContext(ctx map[string]interface{}) string {
	if len(ctx) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(formatValue(ctx[k]))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
