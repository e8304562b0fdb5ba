package rbac

type Role string
type Action string

const (
	RoleUser   Role = "user"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
	RoleBanned Role = "banned"
)

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Can reports whether a role may perform an action on a resource it does or
// does not own. Banned accounts are denied every mutation; admins may act on
// anything; users and mentors may create freely but only mutate what they own.
func Can(role Role, action Action, owner bool) bool {
	switch role {
	case RoleBanned:
		return false
	case RoleAdmin:
		return true
	case RoleUser, RoleMentor:
		if action == ActionCreate {
			return true
		}
		return owner
	default:
		return false
	}
}

// CanHostFocusGroup reports whether the role may create focus groups.
func CanHostFocusGroup(role Role) bool {
	return role == RoleMentor || role == RoleAdmin
}

// CanModerate reports whether the role may impose or lift bans.
func CanModerate(role Role) bool {
	return role == RoleAdmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleMentor, RoleAdmin, RoleBanned:
		return Role(role)
	default:
		return RoleUser
	}
}
