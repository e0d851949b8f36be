package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/ticket/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).Create(ticket).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&ticket).Error
	if err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, nil
	}
	return &ticket, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	stmt := db.WithContext(ctx).Model(&domain.Ticket{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		stmt = stmt.Where("priority = ?", filter.Priority)
	}
	if filter.ContactID != "" {
		stmt = stmt.Where("contact_id = ?", filter.ContactID)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ?", ticket.ID).
		Updates(map[string]any{
			"subject":     ticket.Subject,
			"description": ticket.Description,
			"status":      ticket.Status,
			"priority":    ticket.Priority,
			"contact_id":  ticket.ContactID,
			"guest_name":  ticket.GuestName,
			"guest_email": ticket.GuestEmail,
			"assignee_id": ticket.AssigneeID,
			"resolved_at": ticket.ResolvedAt,
			"updated_at":  ticket.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Ticket{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
