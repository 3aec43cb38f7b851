package commands

const (
	reasonNotAdmin   = "You do not have permission to use this command."
	reasonSingleUser = "This command is not available in single-user mode."
)

// Allowed is the generic permission check shared by every source. Scopes that
// depend on where a command runs (ScopeChannel) are enforced by the source
// before delegating here.
func Allowed(cmd *Command, isAdmin, singleUser bool) (bool, string) {
	if cmd.Scope == ScopeAdmin && !isAdmin {
		return false, reasonNotAdmin
	}
	if singleUser && !cmd.SingleUserAllowed {
		return false, reasonSingleUser
	}
	return true, ""
}
