package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	ServiceAuth          = "auth"
	ServiceContacts      = "contacts"
	ServiceOpportunities = "opportunities"
	ServiceTasks         = "tasks"
	ServiceNotifications = "notifications"
	ServiceAnalytics     = "analytics"
	ServiceDocuments     = "documents"
	ServiceProducts      = "products"
	ServiceInvoices      = "invoices"
	ServiceTickets       = "tickets"
	ServiceSearch        = "search"
	ServiceHR            = "hr"
)

// ServiceEndpoint is a resolved downstream service. Immutable after startup.
type ServiceEndpoint struct {
	Name    string
	BaseURL string
}

// Port returns the port component of the base URL, or "" when absent.
func (e ServiceEndpoint) Port() string {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return ""
	}
	return u.Port()
}

type serviceDefault struct {
	name   string
	envKey string
	url    string
}

var serviceDefaults = []serviceDefault{
	{ServiceAuth, "AUTH_SERVICE_URL", "http://localhost:5001"},
	{ServiceContacts, "CONTACT_SERVICE_URL", "http://localhost:5002"},
	{ServiceOpportunities, "OPPORTUNITY_SERVICE_URL", "http://localhost:5003"},
	{ServiceTasks, "TASK_SERVICE_URL", "http://localhost:5004"},
	{ServiceNotifications, "NOTIFICATION_SERVICE_URL", "http://localhost:5005"},
	{ServiceAnalytics, "ANALYTICS_SERVICE_URL", "http://localhost:5006"},
	{ServiceDocuments, "DOCUMENT_SERVICE_URL", "http://localhost:5007"},
	{ServiceProducts, "PRODUCT_SERVICE_URL", "http://localhost:5008"},
	{ServiceInvoices, "INVOICE_SERVICE_URL", "http://localhost:5009"},
	{ServiceTickets, "TICKET_SERVICE_URL", "http://localhost:5010"},
	{ServiceSearch, "SEARCH_SERVICE_URL", "http://localhost:5011"},
	{ServiceHR, "HR_SERVICE_URL", "http://localhost:5012"},
}

// ServiceTable is the process-wide endpoint table. It has no mutators.
type ServiceTable struct {
	endpoints map[string]ServiceEndpoint
	names     []string
}

// LoadServices resolves every service base URL from the environment.
func LoadServices() ServiceTable {
	endpoints := make([]ServiceEndpoint, 0, len(serviceDefaults))
	for _, def := range serviceDefaults {
		endpoints = append(endpoints, ServiceEndpoint{
			Name:    def.name,
			BaseURL: strings.TrimRight(strings.TrimSpace(getenv(def.envKey, def.url)), "/"),
		})
	}
	return NewServiceTable(endpoints...)
}

func NewServiceTable(endpoints ...ServiceEndpoint) ServiceTable {
	table := ServiceTable{
		endpoints: make(map[string]ServiceEndpoint, len(endpoints)),
		names:     make([]string, 0, len(endpoints)),
	}
	for _, ep := range endpoints {
		ep.BaseURL = strings.TrimRight(ep.BaseURL, "/")
		if _, exists := table.endpoints[ep.Name]; !exists {
			table.names = append(table.names, ep.Name)
		}
		table.endpoints[ep.Name] = ep
	}
	return table
}

func (t ServiceTable) Lookup(name string) (ServiceEndpoint, bool) {
	ep, ok := t.endpoints[name]
	return ep, ok
}

// All returns endpoints in declaration order.
func (t ServiceTable) All() []ServiceEndpoint {
	out := make([]ServiceEndpoint, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.endpoints[name])
	}
	return out
}

// Route maps a public path prefix to the owning service.
type Route struct {
	Prefix  string
	Service string
}

func DefaultRoutes() []Route {
	return []Route{
		{"/api/auth", ServiceAuth},
		{"/api/contacts", ServiceContacts},
		{"/api/opportunities", ServiceOpportunities},
		{"/api/tasks", ServiceTasks},
		{"/api/notifications", ServiceNotifications},
		{"/api/analytics", ServiceAnalytics},
		{"/api/documents", ServiceDocuments},
		{"/api/products", ServiceProducts},
		{"/api/invoices", ServiceInvoices},
		{"/api/payments", ServiceInvoices},
		{"/api/tickets", ServiceTickets},
		{"/api/search", ServiceSearch},
		{"/api/attendance", ServiceHR},
		{"/api/payroll", ServiceHR},
	}
}

// RouteTable resolves paths by longest prefix. Built once, read-only afterwards.
type RouteTable struct {
	services ServiceTable
	routes   []Route
	byLength []Route
}

func NewRouteTable(services ServiceTable, routes []Route) RouteTable {
	declared := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Prefix = "/" + strings.Trim(strings.TrimSpace(r.Prefix), "/")
		declared = append(declared, r)
	}
	byLength := append([]Route(nil), declared...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Prefix) > len(byLength[j].Prefix)
	})
	return RouteTable{services: services, routes: declared, byLength: byLength}
}

// Routes returns the routes in declaration order.
func (t RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Resolve finds the owning service for path. A prefix only matches on a segment
// boundary, so /api/tasks does not claim /api/tasksx.
func (t RouteTable) Resolve(path string) (Route, ServiceEndpoint, bool) {
	for _, r := range t.byLength {
		if !matchPrefix(path, r.Prefix) {
			continue
		}
		ep, ok := t.services.Lookup(r.Service)
		if !ok {
			return Route{}, ServiceEndpoint{}, false
		}
		return r, ep, true
	}
	return Route{}, ServiceEndpoint{}, false
}

func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	next := path[len(prefix)]
	return next == '/' || next == '?'
}

// Validate checks the endpoint and route tables once at startup.
func (c Config) Validate() error {
	var errs error
	for _, ep := range c.Services.All() {
		u, err := url.Parse(ep.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = errors.Join(errs, fmt.Errorf("service %s: invalid base url %q", ep.Name, ep.BaseURL))
		}
	}
	for _, r := range c.Routes.Routes() {
		if _, ok := c.Services.Lookup(r.Service); !ok {
			errs = errors.Join(errs, fmt.Errorf("route %s: unknown service %q", r.Prefix, r.Service))
		}
	}
	if c.UpstreamTimeout <= 0 {
		errs = errors.Join(errs, errors.New("upstream timeout must be positive"))
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		errs = errors.Join(errs, errors.New("notify queue size and workers must be positive"))
	}
	return errs
}

// WithServicesAt points every service at baseURL, for a single process that
// serves all resource routes itself.
func (c Config) WithServicesAt(baseURL string) Config {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	endpoints := c.Services.All()
	for i := range endpoints {
		endpoints[i].BaseURL = baseURL
	}
	c.Services = NewServiceTable(endpoints...)
	c.Routes = NewRouteTable(c.Services, c.Routes.Routes())
	return c
}
