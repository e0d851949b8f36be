package main

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/aggregate"
	"github.com/smallbiznis/crm/internal/analytics"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/gateway"
	"github.com/smallbiznis/crm/internal/invoice"
	"github.com/smallbiznis/crm/internal/migration"
	"github.com/smallbiznis/crm/internal/notification"
	"github.com/smallbiznis/crm/internal/observability"
	"github.com/smallbiznis/crm/internal/payment"
	"github.com/smallbiznis/crm/internal/payroll"
	"github.com/smallbiznis/crm/internal/providers/email"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/ratelimit"
	"github.com/smallbiznis/crm/internal/reconcile"
	"github.com/smallbiznis/crm/internal/records"
	"github.com/smallbiznis/crm/internal/search"
	"github.com/smallbiznis/crm/internal/server"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"github.com/smallbiznis/crm/internal/task"
	"github.com/smallbiznis/crm/internal/ticket"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <role>",
		Short: "Run one role of the platform",
		Long:  "Run one role of the platform. Roles: " + roleNames(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := server.ParseRole(args[0])
			if err != nil {
				return err
			}
			app := fx.New(appOptions(role)...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func roleNames() string {
	names := make([]string, 0, len(server.Roles()))
	for _, r := range server.Roles() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

// appOptions composes the fx graph for one role. Modules shared between
// roles are added once even when "all" pulls every role in.
func appOptions(role server.Role) []fx.Option {
	opts := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Supply(role),
		fx.Decorate(overrideConfig(role)),
	}

	seen := map[string]bool{}
	for _, c := range componentsFor(role) {
		if seen[c] {
			continue
		}
		seen[c] = true
		opts = append(opts, components[c])
	}

	return append(opts,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			registerRoutes(s, role)
		}),
		fx.Invoke(server.RunHTTP),
	)
}

var components = map[string]fx.Option{
	"store":         fx.Options(db.Module, migration.Module),
	"outbound":      fx.Options(serviceclient.Module, dispatch.Module),
	"ratelimit":     ratelimit.Module,
	"gateway":       gateway.Module,
	"aggregate":     aggregate.Module,
	"analytics":     analytics.Module,
	"search":        search.Module,
	"pdf":           pdf.Module,
	"email":         email.Module,
	"ledger":        fx.Options(reconcile.Module, invoice.Module, payment.Module),
	"tickets":       ticket.Module,
	"tasks":         task.Module,
	"hr":            payroll.Module,
	"records":       records.Module,
	"notifications": notification.Module,
}

var recordRoles = map[server.Role]struct {
	prefix     string
	collection string
}{
	server.RoleAuth:          {"/api/auth/users", "users"},
	server.RoleContacts:      {"/api/contacts", "contacts"},
	server.RoleOpportunities: {"/api/opportunities", "opportunities"},
	server.RoleProducts:      {"/api/products", "products"},
	server.RoleDocuments:     {"/api/documents", "documents"},
}

func componentsFor(role server.Role) []string {
	switch role {
	case server.RoleGateway:
		return []string{"ratelimit", "gateway"}
	case server.RoleAnalytics:
		return []string{"outbound", "aggregate", "analytics"}
	case server.RoleSearch:
		return []string{"outbound", "aggregate", "search"}
	case server.RoleInvoices:
		return []string{"store", "outbound", "ratelimit", "pdf", "ledger"}
	case server.RoleTickets:
		return []string{"store", "outbound", "tickets"}
	case server.RoleTasks:
		return []string{"store", "outbound", "tasks"}
	case server.RoleHR:
		return []string{"store", "outbound", "hr"}
	case server.RoleNotifications:
		return []string{"store", "email", "notifications"}
	case server.RoleAll:
		var all []string
		for _, r := range server.Roles() {
			if r == server.RoleAll || r == server.RoleGateway {
				continue
			}
			all = append(all, componentsFor(r)...)
		}
		return all
	}
	if _, ok := recordRoles[role]; ok {
		return []string{"store", "records"}
	}
	return nil
}

func registerRoutes(s *server.Server, role server.Role) {
	switch role {
	case server.RoleGateway:
		s.RegisterGatewayRoutes()
	case server.RoleAnalytics:
		s.RegisterAnalyticsRoutes()
	case server.RoleSearch:
		s.RegisterSearchRoutes()
	case server.RoleInvoices:
		s.RegisterInvoiceRoutes()
	case server.RoleTickets:
		s.RegisterTicketRoutes()
	case server.RoleTasks:
		s.RegisterTaskRoutes()
	case server.RoleHR:
		s.RegisterHRRoutes()
	case server.RoleNotifications:
		s.RegisterNotificationRoutes()
	case server.RoleAll:
		for _, r := range server.Roles() {
			if r != server.RoleAll && r != server.RoleGateway {
				registerRoutes(s, r)
			}
		}
		s.RegisterFallback()
	default:
		if rr, ok := recordRoles[role]; ok {
			s.RegisterRecordRoutes(rr.prefix, rr.collection)
		}
	}
}

// overrideConfig applies command-line flags on top of the environment. The
// combined process also points every service at itself so fan-out and
// notifications stay in-process.
func overrideConfig(role server.Role) func(config.Config) config.Config {
	return func(cfg config.Config) config.Config {
		cfg.Role = string(role)
		if addr := strings.TrimSpace(viper.GetString("addr")); addr != "" {
			cfg.HTTPAddr = addr
		}
		if id := viper.GetInt64("node-id"); id > 0 {
			cfg.NodeID = id
		}
		if role == server.RoleAll {
			cfg = cfg.WithServicesAt(selfURL(server.ListenAddr(cfg, "")))
		}
		return cfg
	}
}

func selfURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
