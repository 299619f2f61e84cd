package registry

import "github.com/edgecomet/apilog/internal/apilog/api"

const (
	TagAll      = "All"
	TagRequest  = "Request"
	TagResponse = "Response"
)

// eventRow maps one API operation to the event name and category tags it is logged under
type eventRow struct {
	op   api.Operation
	name string
	tags []string
}

var eventTable = []eventRow{
	// User lifecycle
	{api.AddUser, "AddUser", []string{"User"}},
	{api.AddUserIfNotExists, "AddUserIfNotExists", []string{"User"}},
	{api.AddOrUpdateUser, "AddOrUpdateUser", []string{"User"}},
	{api.UpdateUser, "UpdateUser", []string{"User"}},
	{api.DeleteUser, "DeleteUser", []string{"User"}},
	{api.ChangePassword, "ChangePassword", []string{"User", "Password"}},
	{api.ResetPassword, "ResetPassword", []string{"User", "Password"}},
	{api.SetUserNotification, "SetUserNotification", []string{"User", "Notification"}},
	{api.RemoveUserNotification, "RemoveUserNotification", []string{"User", "Notification"}},
	{api.ImpersonateUser, "ImpersonateUser", []string{"User", "Impersonation"}},

	// Organization lifecycle
	{api.AddOrganization, "AddOrganization", []string{"Organization"}},
	{api.AddOrganizationIfNotExists, "AddOrganizationIfNotExists", []string{"Organization"}},
	{api.AddOrUpdateOrganization, "AddOrUpdateOrganization", []string{"Organization"}},
	{api.UpdateOrganization, "UpdateOrganization", []string{"Organization"}},
	{api.DeleteOrganization, "DeleteOrganization", []string{"Organization"}},
	{api.AddUserToOrganization, "AddUserToOrganization", []string{"Organization", "User", "Membership"}},
	{api.RemoveUserFromOrganization, "RemoveUserFromOrganization", []string{"Organization", "User", "Membership"}},
	{api.LinkOrganizations, "LinkOrganizations", []string{"Organization", "Link"}},
	{api.UnlinkOrganizations, "UnlinkOrganizations", []string{"Organization", "Link"}},

	// Service tickets
	{api.AddServiceTicket, "AddServiceTicket", []string{"ServiceTicket"}},
	{api.AddServiceTicketIfNotExists, "AddServiceTicketIfNotExists", []string{"ServiceTicket"}},
	{api.AddOrUpdateServiceTicket, "AddOrUpdateServiceTicket", []string{"ServiceTicket"}},
	{api.UpdateServiceTicket, "UpdateServiceTicket", []string{"ServiceTicket"}},
	{api.AddServiceTicketChangeSet, "AddServiceTicketChangeSet", []string{"ServiceTicket", "ChangeSet"}},

	// API control
	{api.RestartHTTPServer, "RestartHTTPServer", []string{"Server", "Control"}},
	{api.StopHTTPServer, "StopHTTPServer", []string{"Server", "Control"}},
}

func eventTags(row eventRow, directionTag string) []string {
	tags := make([]string, 0, len(row.tags)+2)
	tags = append(tags, row.tags...)
	return append(tags, directionTag, TagAll)
}
