package models

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	gorm.Model

	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	ClientName  string     `json:"client_name"` // free text, not a foreign key
	Priority    Priority   `gorm:"not null;default:'medium'" json:"priority"`
	Status      TaskStatus `gorm:"not null;default:'pending';index" json:"status"`
	DueDate     *time.Time `json:"due_date"`
}
