package auth

// Action names the operations gated by role at the HTTP boundary.
type Action string

const (
	ActionCreateVerification Action = "verification:create"
	ActionViewVerification   Action = "verification:view"
	ActionRecordPayment      Action = "payment:record"
	ActionRefundPayment      Action = "payment:refund"
	ActionWaivePayment       Action = "payment:waive"
	ActionAssignOfficer      Action = "step:assign"
	ActionCompleteStep       Action = "step:complete"
	ActionSkipStep           Action = "step:skip"
	ActionUpdateStatus       Action = "status:update"
	ActionComputeScore       Action = "score:compute"
	ActionChangeScope        Action = "scope:change"
)

// capabilities is the static role-to-action table. Checks go through
// HasPermission; no scattered role conditionals.
var capabilities = map[Role]map[Action]bool{
	RoleCitizen: {
		ActionCreateVerification: true,
		ActionViewVerification:   true,
		ActionRecordPayment:      true,
	},
	RoleOfficer: {
		ActionViewVerification: true,
		ActionAssignOfficer:    true,
		ActionCompleteStep:     true,
		ActionComputeScore:     true,
	},
	RoleGovernment: {
		ActionViewVerification: true,
		ActionUpdateStatus:     true,
		ActionComputeScore:     true,
	},
	RoleAdmin: {
		ActionCreateVerification: true,
		ActionViewVerification:   true,
		ActionRecordPayment:      true,
		ActionRefundPayment:      true,
		ActionWaivePayment:       true,
		ActionAssignOfficer:      true,
		ActionCompleteStep:       true,
		ActionSkipStep:           true,
		ActionUpdateStatus:       true,
		ActionComputeScore:       true,
		ActionChangeScope:        true,
	},
}

// HasPermission reports whether the role may perform the action.
func HasPermission(role Role, action Action) bool {
	return capabilities[role][action]
}
