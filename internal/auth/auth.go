package auth

// The authorization collaborator boundary. Token verification happens
// upstream; this package only answers role/ownership questions for the
// resources this service owns.

// Role is the requester's role as asserted by the upstream auth layer.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Requester identifies who is making a request.
type Requester struct {
	ID   string
	Role Role
}

// Action is what the requester wants to do with a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionEnd    Action = "end"
	ActionManage Action = "manage"
)

// Resource describes the target of an authorization check.
type Resource struct {
	Type      string // "session", "analysis", "device"
	PatientID string // the patient the resource belongs to, if any
	CreatedBy string // the clinician who created it, if any
}

// Authorizer decides whether a requester may perform an action on a
// resource.
type Authorizer interface {
	Authorize(req Requester, res Resource, action Action) bool
}

// roleAuthorizer implements the default role/ownership rules: patients see
// only their own data, clinicians act on sessions they created and read
// their patients' analysis, admins see all.
type roleAuthorizer struct{}

// NewRoleAuthorizer returns the default role-based authorizer.
func NewRoleAuthorizer() Authorizer {
	return &roleAuthorizer{}
}

func (a *roleAuthorizer) Authorize(req Requester, res Resource, action Action) bool {
	if req.ID == "" {
		return false
	}
	switch req.Role {
	case RoleAdmin:
		return true
	case RoleDoctor:
		switch action {
		case ActionCreate, ActionRead:
			return true
		case ActionEnd:
			return res.CreatedBy == req.ID
		default:
			return false
		}
	case RolePatient:
		switch action {
		case ActionRead:
			return res.PatientID == req.ID
		case ActionEnd:
			// The bound patient may end their own session.
			return res.Type == "session" && res.PatientID == req.ID
		default:
			return false
		}
	default:
		return false
	}
}
