package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/ticket/domain"
	"github.com/smallbiznis/crm/internal/ticket/repository"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (c *captured) Notify(_ context.Context, ev dispatch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newService(t *testing.T) (domain.Service, *captured) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Ticket{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	events := &captured{}
	svc := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Notifier: events,
		Observer: dispatch.NewObserver("", zap.NewNop()),
	})
	return svc, events
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newService(t)
	ticket, err := svc.Create(context.Background(), domain.CreateTicketRequest{Subject: "  Printer on fire "})
	require.NoError(t, err)
	assert.Equal(t, "Printer on fire", ticket.Subject)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Equal(t, domain.PriorityMedium, ticket.Priority)

	_, err = svc.Create(context.Background(), domain.CreateTicketRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)
	_, err = svc.Create(context.Background(), domain.CreateTicketRequest{Subject: "x", Priority: "Urgent"})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestResolvingNotifiesGuestOnce(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, domain.CreateTicketRequest{
		Subject:    "Cannot log in",
		GuestName:  "Dana",
		GuestEmail: "dana@example.com",
		ContactID:  "c-1",
	})
	require.NoError(t, err)
	id := ticket.ID.String()

	inProgress := domain.StatusInProgress
	_, err = svc.Update(ctx, id, domain.UpdateTicketRequest{Status: &inProgress})
	require.NoError(t, err)
	assert.Empty(t, events.events)

	resolved := domain.StatusResolved
	updated, err := svc.Update(ctx, id, domain.UpdateTicketRequest{Status: &resolved})
	require.NoError(t, err)
	assert.NotNil(t, updated.ResolvedAt)

	// saving an already resolved ticket is not a transition
	note := "follow-up"
	_, err = svc.Update(ctx, id, domain.UpdateTicketRequest{Description: &note, Status: &resolved})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, dispatch.KindTicketResolved, events.events[0].Kind)
	assert.Equal(t, "dana@example.com", events.events[0].To)
}

func TestListFiltersAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateTicketRequest{Subject: "a", Priority: domain.PriorityCritical})
	require.NoError(t, err)
	low, err := svc.Create(ctx, domain.CreateTicketRequest{Subject: "b", Priority: domain.PriorityLow})
	require.NoError(t, err)

	critical, err := svc.List(ctx, domain.ListFilter{Priority: domain.PriorityCritical})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, "a", critical[0].Subject)

	require.NoError(t, svc.Delete(ctx, low.ID.String()))
	assert.ErrorIs(t, svc.Delete(ctx, low.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "nope"), domain.ErrInvalidID)
}
