package server

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/crm/internal/config"
)

// Role names one deployable process. Every role except the gateway and
// "all" owns exactly one entry in the service table.
type Role string

const (
	RoleGateway       Role = "gateway"
	RoleAuth          Role = "auth"
	RoleContacts      Role = "contacts"
	RoleOpportunities Role = "opportunities"
	RoleTasks         Role = "tasks"
	RoleNotifications Role = "notifications"
	RoleAnalytics     Role = "analytics"
	RoleDocuments     Role = "documents"
	RoleProducts      Role = "products"
	RoleInvoices      Role = "invoices"
	RoleTickets       Role = "tickets"
	RoleSearch        Role = "search"
	RoleHR            Role = "hr"
	RoleAll           Role = "all"
)

var roles = []Role{
	RoleGateway,
	RoleAuth,
	RoleContacts,
	RoleOpportunities,
	RoleTasks,
	RoleNotifications,
	RoleAnalytics,
	RoleDocuments,
	RoleProducts,
	RoleInvoices,
	RoleTickets,
	RoleSearch,
	RoleHR,
	RoleAll,
}

func Roles() []Role {
	return append([]Role(nil), roles...)
}

func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, r := range roles {
		if r == candidate {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Service is the service-table entry whose port the role listens on.
// The gateway and the combined process have none.
func (r Role) Service() string {
	switch r {
	case RoleGateway, RoleAll:
		return ""
	case RoleAuth:
		return config.ServiceAuth
	case RoleHR:
		return config.ServiceHR
	default:
		return string(r)
	}
}
