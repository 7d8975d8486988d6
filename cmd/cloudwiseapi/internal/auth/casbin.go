package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

//go:embed model.conf
var casbinModelContent string

// RoleAuthorizer answers "does a holder of role X satisfy a requirement for
// role Y". Role inheritance lives in the casbin grouping policy: admin
// inherits everything granted to user.
type RoleAuthorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewRoleAuthorizer builds an in-memory enforcer from the embedded model.
func NewRoleAuthorizer() (*RoleAuthorizer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for _, role := range models.Roles {
		if _, err := enforcer.AddPolicy(string(role), roleObject(role)); err != nil {
			return nil, fmt.Errorf("add %s policy: %w", role, err)
		}
	}
	if _, err := enforcer.AddGroupingPolicy(string(models.RoleAdmin), string(models.RoleUser)); err != nil {
		return nil, fmt.Errorf("add admin inheritance: %w", err)
	}

	return &RoleAuthorizer{enforcer: enforcer}, nil
}

// Satisfies reports whether a user holding have passes a gate requiring want.
func (a *RoleAuthorizer) Satisfies(have, want models.Role) (bool, error) {
	if !have.Valid() || !want.Valid() {
		return false, nil
	}
	return a.enforcer.Enforce(string(have), roleObject(want))
}

func roleObject(role models.Role) string {
	return "role:" + string(role)
}
