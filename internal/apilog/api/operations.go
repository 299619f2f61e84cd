package api

import "github.com/valyala/fasthttp"

// Operation identifies one endpoint of the users API
type Operation int

const (
	AddUser Operation = iota
	AddUserIfNotExists
	AddOrUpdateUser
	UpdateUser
	DeleteUser
	ChangePassword
	ResetPassword
	SetUserNotification
	RemoveUserNotification
	ImpersonateUser
	AddOrganization
	AddOrganizationIfNotExists
	AddOrUpdateOrganization
	UpdateOrganization
	DeleteOrganization
	AddUserToOrganization
	RemoveUserFromOrganization
	LinkOrganizations
	UnlinkOrganizations
	AddServiceTicket
	AddServiceTicketIfNotExists
	AddOrUpdateServiceTicket
	UpdateServiceTicket
	AddServiceTicketChangeSet
	RestartHTTPServer
	StopHTTPServer

	operationCount
)

// Route is the HTTP method and exact path an operation is served on
type Route struct {
	Method string
	Path   string
}

type operationInfo struct {
	name  string
	route Route
}

var operations = [operationCount]operationInfo{
	AddUser:                     {"AddUser", Route{fasthttp.MethodPost, "/users"}},
	AddUserIfNotExists:          {"AddUserIfNotExists", Route{fasthttp.MethodPost, "/users/ifnotexists"}},
	AddOrUpdateUser:             {"AddOrUpdateUser", Route{fasthttp.MethodPut, "/users"}},
	UpdateUser:                  {"UpdateUser", Route{fasthttp.MethodPatch, "/users"}},
	DeleteUser:                  {"DeleteUser", Route{fasthttp.MethodDelete, "/users"}},
	ChangePassword:              {"ChangePassword", Route{fasthttp.MethodPost, "/users/password"}},
	ResetPassword:               {"ResetPassword", Route{fasthttp.MethodPost, "/users/password/reset"}},
	SetUserNotification:         {"SetUserNotification", Route{fasthttp.MethodPut, "/users/notifications"}},
	RemoveUserNotification:      {"RemoveUserNotification", Route{fasthttp.MethodDelete, "/users/notifications"}},
	ImpersonateUser:             {"ImpersonateUser", Route{fasthttp.MethodPost, "/users/impersonate"}},
	AddOrganization:             {"AddOrganization", Route{fasthttp.MethodPost, "/organizations"}},
	AddOrganizationIfNotExists:  {"AddOrganizationIfNotExists", Route{fasthttp.MethodPost, "/organizations/ifnotexists"}},
	AddOrUpdateOrganization:     {"AddOrUpdateOrganization", Route{fasthttp.MethodPut, "/organizations"}},
	UpdateOrganization:          {"UpdateOrganization", Route{fasthttp.MethodPatch, "/organizations"}},
	DeleteOrganization:          {"DeleteOrganization", Route{fasthttp.MethodDelete, "/organizations"}},
	AddUserToOrganization:       {"AddUserToOrganization", Route{fasthttp.MethodPost, "/organizations/members"}},
	RemoveUserFromOrganization:  {"RemoveUserFromOrganization", Route{fasthttp.MethodDelete, "/organizations/members"}},
	LinkOrganizations:           {"LinkOrganizations", Route{fasthttp.MethodPost, "/organizations/links"}},
	UnlinkOrganizations:         {"UnlinkOrganizations", Route{fasthttp.MethodDelete, "/organizations/links"}},
	AddServiceTicket:            {"AddServiceTicket", Route{fasthttp.MethodPost, "/serviceTickets"}},
	AddServiceTicketIfNotExists: {"AddServiceTicketIfNotExists", Route{fasthttp.MethodPost, "/serviceTickets/ifnotexists"}},
	AddOrUpdateServiceTicket:    {"AddOrUpdateServiceTicket", Route{fasthttp.MethodPut, "/serviceTickets"}},
	UpdateServiceTicket:         {"UpdateServiceTicket", Route{fasthttp.MethodPatch, "/serviceTickets"}},
	AddServiceTicketChangeSet:   {"AddServiceTicketChangeSet", Route{fasthttp.MethodPost, "/serviceTickets/changeSets"}},
	RestartHTTPServer:           {"RestartHTTPServer", Route{fasthttp.MethodPost, "/api/restart"}},
	StopHTTPServer:              {"StopHTTPServer", Route{fasthttp.MethodPost, "/api/stop"}},
}

func (op Operation) valid() bool {
	return op >= 0 && op < operationCount
}

func (op Operation) String() string {
	if !op.valid() {
		return "Unknown"
	}
	return operations[op].name
}

// Route returns the method and path the operation is served on
func (op Operation) Route() Route {
	if !op.valid() {
		return Route{}
	}
	return operations[op].route
}

// Operations returns every operation in declaration order
func Operations() []Operation {
	ops := make([]Operation, operationCount)
	for i := range ops {
		ops[i] = Operation(i)
	}
	return ops
}

// ParseOperation looks an operation up by name
func ParseOperation(name string) (Operation, bool) {
	for i, info := range operations {
		if info.name == name {
			return Operation(i), true
		}
	}
	return 0, false
}
