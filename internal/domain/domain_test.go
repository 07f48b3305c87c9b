package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.terminal, tc.status.IsTerminal(), tc.status)
		assert.True(t, tc.status.Valid())
	}
	assert.False(t, JobStatus("archived").Valid())
}

func TestJobCloneIsDeep(t *testing.T) {
	eta := time.Now()
	ms := int64(10)
	job := Job{ID: "j", Result: &ThreatModelResult{ThreatModel: "a"}, EstimatedCompletion: &eta, ProcessingTimeMs: &ms}

	c := job.Clone()
	c.Result.ThreatModel = "b"
	*c.ProcessingTimeMs = 99

	assert.Equal(t, "a", job.Result.ThreatModel)
	assert.Equal(t, int64(10), *job.ProcessingTimeMs)
	assert.NotSame(t, job.EstimatedCompletion, c.EstimatedCompletion)
}

func TestFrameworks(t *testing.T) {
	for _, f := range []string{"STRIDE", "LINDDUN", "PASTA", "Attack Trees", "ATTACK_TREES"} {
		assert.True(t, ValidFramework(f), f)
	}
	assert.False(t, ValidFramework("stride"))
	assert.False(t, ValidFramework("OCTAVE"))

	assert.Equal(t, FrameworkSTRIDE, CanonicalFramework(""))
	assert.Equal(t, FrameworkAttackTrees, CanonicalFramework("ATTACK_TREES"))
	assert.Equal(t, FrameworkPASTA, CanonicalFramework("PASTA"))
}

func TestThreatModelJobRequestNormalize(t *testing.T) {
	req := ThreatModelJobRequest{Content: "\n  web app \t", Framework: "ATTACK_TREES", FileID: "abc", LLMProvider: "mock"}
	req.Normalize()

	assert.Equal(t, "web app", req.Content)
	assert.Equal(t, FrameworkAttackTrees, req.Framework)
	assert.Equal(t, PriorityNormal, req.Priority)

	syncReq := req.ThreatModelRequest()
	assert.Equal(t, ThreatModelRequest{Content: "web app", Framework: FrameworkAttackTrees, FileID: "abc", LLMProvider: "mock"}, syncReq)
}

func TestScenarioRequestNormalize(t *testing.T) {
	req := ScenarioRequest{CompanyName: "Acme"}
	req.Normalize()
	assert.Equal(t, DefaultScenarioType, req.ScenarioType)
	assert.Equal(t, []string{DefaultParticipant}, req.Participants)
	assert.Equal(t, DefaultDurationHours, req.DurationHours)

	custom := ScenarioRequest{ScenarioType: "phishing", Participants: []string{"IT"}, DurationHours: 4}
	custom.Normalize()
	assert.Equal(t, "phishing", custom.ScenarioType)
	assert.Equal(t, 4, custom.DurationHours)
}

func TestParseProvider(t *testing.T) {
	p, ok := ParseProvider(" OpenAI ")
	assert.True(t, ok)
	assert.Equal(t, ProviderOpenAI, p)

	p, ok = ParseProvider("gemini")
	assert.False(t, ok)
	assert.Equal(t, Provider("gemini"), p)
}

func TestFileTypeIsDiagram(t *testing.T) {
	assert.True(t, FileTypeDrawio.IsDiagram())
	assert.True(t, FileTypeXML.IsDiagram())
	assert.False(t, FileTypePNG.IsDiagram())
	assert.False(t, FileTypeSVG.IsDiagram())
}
