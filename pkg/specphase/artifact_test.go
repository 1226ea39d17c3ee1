package specphase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifact_RequirementID(t *testing.T) {
	raw := "---\nid: REQ-AUTH-LOGIN-001\nstatus: Draft\n---\n\nThe system SHALL require a password.\n"
	a, err := ParseArtifact(raw)
	require.NoError(t, err)
	assert.Equal(t, ArtifactRequirement, a.Kind)
	assert.Equal(t, "REQ-AUTH-LOGIN-001", a.Frontmatter.ID)
	assert.Contains(t, a.Body, "SHALL require a password")
}

func TestParseArtifact_TaskAndTicketIDs(t *testing.T) {
	tsk, err := ParseArtifact("---\nid: TSK-001\nstatus: Draft\n---\nbody\n")
	require.NoError(t, err)
	assert.Equal(t, ArtifactTask, tsk.Kind)

	tkt, err := ParseArtifact("---\nid: TKT-001\nstatus: Draft\n---\nbody\n")
	require.NoError(t, err)
	assert.Equal(t, ArtifactTicket, tkt.Kind)
}

func TestParseArtifact_RejectsUnknownPrefix(t *testing.T) {
	_, err := ParseArtifact("---\nid: NOTE-001\nstatus: Draft\n---\nbody\n")
	assert.Error(t, err)
}

func TestParseArtifact_RejectsMissingFrontmatter(t *testing.T) {
	_, err := ParseArtifact("just a markdown file\n")
	assert.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	_, ok := NormalizeStatus("Implemented")
	assert.True(t, ok)
	_, ok = NormalizeStatus("InProgress")
	assert.False(t, ok)
}

func TestValidateArtifactSet_PassesWithCleanGraph(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "Draft"}},
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-002", Status: "Draft", BlockedBy: []string{"TSK-001"}}},
	}
	assert.NoError(t, ValidateArtifactSet(artifacts))
}

func TestValidateArtifactSet_RejectsDuplicateIDs(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "Draft"}},
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "Draft"}},
	}
	err := ValidateArtifactSet(artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestValidateArtifactSet_RejectsUnresolvedReference(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "Draft", BlockedBy: []string{"TSK-999"}}},
	}
	err := ValidateArtifactSet(artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestValidateArtifactSet_RejectsInvalidStatus(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "InProgress"}},
	}
	err := ValidateArtifactSet(artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestValidateArtifactSet_RejectsCircularDependency(t *testing.T) {
	artifacts := []Artifact{
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-001", Status: "Draft", BlockedBy: []string{"TSK-002"}}},
		{Kind: ArtifactTask, Frontmatter: Frontmatter{ID: "TSK-002", Status: "Draft", BlockedBy: []string{"TSK-001"}}},
	}
	err := ValidateArtifactSet(artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestFindCycles_NoFalsePositiveOnDiamond(t *testing.T) {
	artifacts := []Artifact{
		{Frontmatter: Frontmatter{ID: "TSK-001"}},
		{Frontmatter: Frontmatter{ID: "TSK-002", BlockedBy: []string{"TSK-001"}}},
		{Frontmatter: Frontmatter{ID: "TSK-003", BlockedBy: []string{"TSK-001"}}},
		{Frontmatter: Frontmatter{ID: "TSK-004", BlockedBy: []string{"TSK-002", "TSK-003"}}},
	}
	assert.Empty(t, findCycles(artifacts))
}
