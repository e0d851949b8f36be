package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/task/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Create(task).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Task, error) {
	var tasks []*domain.Task
	stmt := db.WithContext(ctx).Model(&domain.Task{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AssigneeID != "" {
		stmt = stmt.Where("assignee_id = ?", filter.AssigneeID)
	}
	// open work with the nearest due date first
	if err := stmt.Order("due_date is null, due_date asc, id desc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":       task.Title,
			"description": task.Description,
			"status":      task.Status,
			"assignee_id": task.AssigneeID,
			"contact_id":  task.ContactID,
			"due_date":    task.DueDate,
			"updated_at":  task.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Task{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
