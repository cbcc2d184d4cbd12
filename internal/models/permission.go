package models

import "time"

// Permission actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Permission resources.
const (
	ResourceStudents    = "students"
	ResourceClasses     = "classes"
	ResourceSubjects    = "subjects"
	ResourceGrades      = "grades"
	ResourceAttendance  = "attendance"
	ResourceEvaluations = "evaluations"
	ResourceBECEResults = "bece_results"
	ResourcePromotions  = "promotions"
	ResourceReports     = "reports"
	ResourceUsers       = "users"
	ResourcePermissions = "permissions"
	ResourceSync        = "sync"
)

// PermissionActions lists every grantable action.
var PermissionActions = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// PermissionResources lists every guarded resource.
var PermissionResources = []string{
	ResourceStudents, ResourceClasses, ResourceSubjects, ResourceGrades, ResourceAttendance,
	ResourceEvaluations, ResourceBECEResults, ResourcePromotions, ResourceReports, ResourceUsers,
	ResourcePermissions, ResourceSync,
}

// Permission grants a role one action on one resource.
type Permission struct {
	ID        string    `db:"id" json:"id"`
	Role      UserRole  `db:"role" json:"role"`
	Resource  string    `db:"resource" json:"resource"`
	Action    string    `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Key renders resource:action.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// EffectivePermissions is the permission set of a role keyed by resource.
// All is set for SUPERADMIN, which bypasses permission rows.
type EffectivePermissions struct {
	Role        UserRole            `json:"role"`
	All         bool                `json:"all"`
	Permissions map[string][]string `json:"permissions"`
}
