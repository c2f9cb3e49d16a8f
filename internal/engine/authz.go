package engine

import (
	"context"
	"fmt"

	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/models"
)

// stageRoles maps each review stage to the reviewer roles allowed to act
// there. Program admins can act at every stage.
var stageRoles = map[models.Stage][]models.ReviewerRole{
	models.StageConstituency: {models.RoleConstituencyOfficer, models.RoleProgramAdmin},
	models.StageRegional:     {models.RoleRegionalOfficer, models.RoleProgramAdmin},
	models.StageNational:     {models.RoleNationalOfficer, models.RoleProgramAdmin},
}

func roleAuthorized(role models.ReviewerRole, stage models.Stage) bool {
	for _, allowed := range stageRoles[stage] {
		if allowed == role {
			return true
		}
	}
	return false
}

// authorize resolves the actor through the reviewer directory and checks
// that their role is allowed to act at the given stage.
func (e *Engine) authorize(ctx context.Context, actorID string, stage models.Stage) (*models.Reviewer, error) {
	reviewer, err := e.directory.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !reviewer.Active {
		return nil, errors.NewAuthorizationError("reviewer account is inactive",
			fmt.Sprintf("reviewer: %s", actorID))
	}
	if !roleAuthorized(reviewer.Role, stage) {
		return nil, errors.NewAuthorizationError("reviewer role cannot act at this stage",
			fmt.Sprintf("reviewer %s with role %s cannot act at stage %s", actorID, reviewer.Role, stage))
	}
	return reviewer, nil
}
