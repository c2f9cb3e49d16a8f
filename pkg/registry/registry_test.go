// pkg/registry/registry_test.go
package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
)

// ==========================
// Test Helpers
// ==========================

const validRegistryJSON = `{
  "version": "1.0.0",
  "updatedAt": "2025-01-15T00:00:00Z",
  "tracks": [
    {
      "id": "new-farmer-registration",
      "name": "New Farmer Registration",
      "kind": "new_farmer",
      "numberPrefix": "NFR",
      "stages": ["constituency", "regional", "national"]
    },
    {
      "id": "layer-program-enrollment",
      "name": "Layer Program Enrollment",
      "kind": "program_enrollment",
      "numberPrefix": "LPE",
      "programId": "layer-program-2025",
      "stages": ["regional", "national"],
      "requiresEligibility": true,
      "stageSlaDays": {"regional": 10},
      "changesDeadlineDays": 10
    }
  ],
  "programs": [
    {
      "programId": "layer-program-2025",
      "minAge": 18,
      "maxAge": 35,
      "minMonthsFarming": 6,
      "minCapacity": 50,
      "eligibleCounties": ["Kiambu", "Nyeri"],
      "remainingSlots": 2
    }
  ],
  "reviewers": [
    {"id": "const-1", "name": "Janet Wambui", "email": "jwambui@kilimo.go.ke", "role": "constituency_officer", "active": true},
    {"id": "reg-1", "name": "Peter Otieno", "email": "potieno@kilimo.go.ke", "role": "regional_officer", "active": true}
  ]
}`

func createTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Parse([]byte(validRegistryJSON))
	require.NoError(t, err)
	return reg
}

// ==========================
// Parse Tests
// ==========================

func TestParse_ValidRegistry(t *testing.T) {
	reg := createTestRegistry(t)

	assert.Equal(t, "1.0.0", reg.Version)
	assert.Equal(t, 2025, reg.UpdatedAt.Year())

	track, ok := reg.Track("new-farmer-registration")
	require.True(t, ok)
	assert.Equal(t, models.TrackNewFarmer, track.Kind)
	assert.Equal(t, "NFR", track.NumberPrefix)
	assert.Equal(t, []models.Stage{models.StageConstituency, models.StageRegional, models.StageNational},
		track.Stages)

	enrollment, ok := reg.Track("layer-program-enrollment")
	require.True(t, ok)
	assert.True(t, enrollment.RequiresEligibility)
	assert.Equal(t, 10, enrollment.StageSLADays[models.StageRegional])
	assert.Equal(t, 10, enrollment.ChangesDeadlineDays)

	tracks := reg.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "new-farmer-registration", tracks[0].ID)
	assert.Equal(t, "layer-program-enrollment", tracks[1].ID)

	reviewers := reg.Reviewers()
	require.Len(t, reviewers, 2)
	assert.Equal(t, models.RoleConstituencyOfficer, reviewers[0].Role)
}

func TestParse_UnknownTrackMisses(t *testing.T) {
	reg := createTestRegistry(t)

	_, ok := reg.Track("goat-program")
	assert.False(t, ok)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "missing version",
			json: `{"tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["constituency"]}]}`,
		},
		{
			name: "no tracks",
			json: `{"version": "1.0.0", "tracks": []}`,
		},
		{
			name: "unknown track kind",
			json: `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "cattle", "numberPrefix": "T", "stages": ["constituency"]}]}`,
		},
		{
			name: "empty number prefix",
			json: `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "", "stages": ["constituency"]}]}`,
		},
		{
			name: "unknown stage name",
			json: `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["county"]}]}`,
		},
		{
			name: "unknown reviewer role",
			json: `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["constituency"]}], "reviewers": [{"id": "r", "role": "chief"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestParse_SemanticViolations(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name:    "stages out of order",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["regional", "constituency"]}]}`,
			wantErr: "canonical order",
		},
		{
			name:    "repeated stage",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["regional", "regional"]}]}`,
			wantErr: "canonical order",
		},
		{
			name:    "duplicate track ID",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["constituency"]}, {"id": "t", "name": "T2", "kind": "new_farmer", "numberPrefix": "T2", "stages": ["regional"]}]}`,
			wantErr: "duplicate track ID",
		},
		{
			name:    "eligibility without program",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "program_enrollment", "numberPrefix": "T", "stages": ["regional"], "requiresEligibility": true}]}`,
			wantErr: "requires a programId",
		},
		{
			name:    "unknown program reference",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "program_enrollment", "numberPrefix": "T", "programId": "ghost", "stages": ["regional"]}]}`,
			wantErr: "unknown program",
		},
		{
			name:    "duplicate program ID",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["constituency"]}], "programs": [{"programId": "p"}, {"programId": "p"}]}`,
			wantErr: "duplicate program ID",
		},
		{
			name:    "duplicate reviewer ID",
			json:    `{"version": "1.0.0", "tracks": [{"id": "t", "name": "T", "kind": "new_farmer", "numberPrefix": "T", "stages": ["constituency"]}], "reviewers": [{"id": "r", "role": "program_admin"}, {"id": "r", "role": "program_admin"}]}`,
			wantErr: "duplicate reviewer ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ==========================
// Load Tests
// ==========================

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(validRegistryJSON), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", reg.Version)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read registry")
}

// ==========================
// Program Criteria Tests
// ==========================

func TestCriteriaFor_ReturnsIsolatedCopy(t *testing.T) {
	reg := createTestRegistry(t)

	first, err := reg.CriteriaFor(context.Background(), "layer-program-2025")
	require.NoError(t, err)
	require.NotNil(t, first.RemainingSlots)
	assert.Equal(t, 2, *first.RemainingSlots)

	*first.RemainingSlots = 0

	second, err := reg.CriteriaFor(context.Background(), "layer-program-2025")
	require.NoError(t, err)
	assert.Equal(t, 2, *second.RemainingSlots)
}

func TestCriteriaFor_UnknownProgram(t *testing.T) {
	reg := createTestRegistry(t)

	_, err := reg.CriteriaFor(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestConsumeSlot_DecrementsUntilExhausted(t *testing.T) {
	reg := createTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.ConsumeSlot(ctx, "layer-program-2025"))
	criteria, err := reg.CriteriaFor(ctx, "layer-program-2025")
	require.NoError(t, err)
	assert.Equal(t, 1, *criteria.RemainingSlots)

	require.NoError(t, reg.ConsumeSlot(ctx, "layer-program-2025"))

	err = reg.ConsumeSlot(ctx, "layer-program-2025")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestConsumeSlot_UnlimitedProgram(t *testing.T) {
	doc := `{
	  "version": "1.0.0",
	  "tracks": [{"id": "t", "name": "T", "kind": "program_enrollment", "numberPrefix": "T", "programId": "open-program", "stages": ["regional"]}],
	  "programs": [{"programId": "open-program"}]
	}`
	reg, err := Parse([]byte(doc))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, reg.ConsumeSlot(ctx, "open-program"))
	}
}

func TestConsumeSlot_UnknownProgram(t *testing.T) {
	reg := createTestRegistry(t)

	err := reg.ConsumeSlot(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
