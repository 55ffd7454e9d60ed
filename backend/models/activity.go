package models

import "gorm.io/gorm"

type ActivityLog struct {
	gorm.Model
	UserID       uint
	Action       string // "exam_created", "generation_created", "generation_analyzed", "generation_exported"
	ExamID       uint
	GenerationID uint
	Detail       string
}
