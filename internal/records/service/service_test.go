package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/records/domain"
	"github.com/smallbiznis/crm/internal/records/repository"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Record{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestCreateAppliesDefaultsAndIgnoresReservedKeys(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "Contacts", map[string]any{"name": "Ada", "id": "spoofed", "email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "contacts", rec.Collection)

	doc := rec.Document()
	assert.Equal(t, rec.ID.String(), doc["id"])
	assert.Equal(t, "New", doc["status"])
	assert.Equal(t, "ada@example.com", doc["email"])

	_, err = svc.Create(ctx, "contacts", map[string]any{"email": "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	_, err = svc.Create(ctx, "invoices", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
}

func TestUpdateMergesAndRemoves(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "opportunities", map[string]any{"title": "Renewal", "amount": 1200, "note": "call"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "opportunities", rec.ID.String(), map[string]any{"stage": "Won", "note": nil})
	require.NoError(t, err)
	doc := updated.Document()
	assert.Equal(t, "Won", doc["stage"])
	assert.Equal(t, "Renewal", doc["title"])
	assert.NotContains(t, doc, "note")

	_, err = svc.Update(ctx, "opportunities", rec.ID.String(), map[string]any{"title": ""})
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)

	// collections do not see each other's records
	_, err = svc.GetByID(ctx, "products", rec.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListWholeCollectionOrPaged(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, "products", map[string]any{"name": name})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "documents", map[string]any{"name": "contract.pdf"})
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ListRequest{Collection: "products"})
	require.NoError(t, err)
	assert.Len(t, all.Documents, 3)
	assert.Nil(t, all.PageInfo)

	page, err := svc.List(ctx, domain.ListRequest{Collection: "products", PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Documents, 2)
	require.NotNil(t, page.PageInfo)
	assert.True(t, page.PageInfo.HasMore)

	rest, err := svc.List(ctx, domain.ListRequest{Collection: "products", PageSize: 2, PageToken: page.PageInfo.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Documents, 1)
}

func TestDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "users", map[string]any{"email": "ops@example.com"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "users", rec.ID.String()))
	assert.ErrorIs(t, svc.Delete(ctx, "users", rec.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "users", "x"), domain.ErrInvalidID)
}
