package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

type TaskController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewTaskController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *TaskController {
	return &TaskController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

var errTaskTitleRequired = errors.New("title is required")

type taskInput struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=300"`
	Description *string    `json:"description"`
	ClientName  *string    `json:"client_name" validate:"omitempty,max=200"`
	Priority    *string    `json:"priority" validate:"omitempty,priority"`
	Status      *string    `json:"status" validate:"omitempty,task_status"`
	DueDate     *time.Time `json:"due_date"`
}

func (in taskInput) apply(t *models.Task) {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ClientName != nil {
		t.ClientName = *in.ClientName
	}
	if in.Priority != nil {
		t.Priority = models.Priority(*in.Priority)
	}
	if in.Status != nil {
		t.Status = models.TaskStatus(*in.Status)
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	var input taskInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errTaskTitleRequired)
	}

	task := models.Task{Priority: models.PriorityMedium, Status: models.TaskPending}
	input.apply(&task)

	if err := tc.DB.Create(&task).Error; err != nil {
		utils.LogError("task_create", err, map[string]interface{}{"title": task.Title})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create task", err)
	}

	publish(tc.Events, EntityTask, ActionCreated, task.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(task))
}

// GetTasks lists tasks by due date, filtered by status and priority
func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := tc.DB.Model(&models.Task{})
	if status := c.Query("status"); status != "" {
		if !models.TaskStatus(status).Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status", nil)
		}
		query = query.Where("status = ?", status)
	}
	if priority := c.Query("priority"); priority != "" {
		if !models.Priority(priority).Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid priority", nil)
		}
		query = query.Where("priority = ?", priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count tasks", err)
	}

	var tasks []models.Task
	if err := query.Order("due_date IS NULL").Order("due_date ASC").Order("id ASC").
		Offset(offset).Limit(limit).Find(&tasks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch tasks", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  tasks,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "task")
	}

	var task models.Task
	if err := tc.DB.First(&task, id).Error; err != nil {
		return fetchError(c, err, "Task")
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "task")
	}

	var input taskInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var task models.Task
	if err := tc.DB.First(&task, id).Error; err != nil {
		return fetchError(c, err, "Task")
	}

	input.apply(&task)
	if task.Title == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errTaskTitleRequired)
	}

	if err := tc.DB.Save(&task).Error; err != nil {
		utils.LogError("task_update", err, map[string]interface{}{"task_id": id})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update task", err)
	}

	publish(tc.Events, EntityTask, ActionUpdated, task.ID)
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "task")
	}

	var task models.Task
	if err := tc.DB.First(&task, id).Error; err != nil {
		return fetchError(c, err, "Task")
	}
	if err := tc.DB.Delete(&task).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete task", err)
	}

	publish(tc.Events, EntityTask, ActionDeleted, task.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Task deleted successfully"}))
}
