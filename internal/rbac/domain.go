package rbac

// Actions evaluated against the capability matrix.
const (
	ActionRead        = "read"
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionExport      = "export"
	ActionManageUsers = "manage_users"
)

// Actions lists every known action.
func Actions() []string {
	return []string{
		ActionRead,
		ActionCreate,
		ActionUpdate,
		ActionDelete,
		ActionExport,
		ActionManageUsers,
	}
}
