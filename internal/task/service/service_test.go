package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/task/domain"
	"github.com/smallbiznis/crm/internal/task/repository"
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
	require.NoError(t, conn.AutoMigrate(&domain.Task{}))
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

func TestStatusChangeNotifiesAssignee(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, domain.CreateTaskRequest{Title: "Call back", AssigneeID: "contact-7"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)

	title := "Call back today"
	_, err = svc.Update(ctx, task.ID.String(), domain.UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Empty(t, events.events)

	done := domain.StatusCompleted
	_, err = svc.Update(ctx, task.ID.String(), domain.UpdateTaskRequest{Status: &done})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, dispatch.KindTaskUpdated, ev.Kind)
	assert.Equal(t, "contact-7", ev.ContactID)
	assert.Contains(t, ev.Subject, "Completed")
}

func TestUnassignedTaskIsSilent(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, domain.CreateTaskRequest{Title: "Tidy CRM"})
	require.NoError(t, err)

	progress := domain.StatusInProgress
	_, err = svc.Update(ctx, task.ID.String(), domain.UpdateTaskRequest{Status: &progress})
	require.NoError(t, err)
	assert.Empty(t, events.events)
}

func TestListOrdersByDueDate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	later := time.Now().Add(72 * time.Hour)
	sooner := time.Now().Add(24 * time.Hour)
	_, err := svc.Create(ctx, domain.CreateTaskRequest{Title: "later", DueDate: &later})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateTaskRequest{Title: "undated"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateTaskRequest{Title: "sooner", DueDate: &sooner})
	require.NoError(t, err)

	tasks, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"sooner", "later", "undated"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})

	_, err = svc.List(ctx, domain.ListFilter{Status: "Blocked"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
