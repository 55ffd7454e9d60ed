package models

import "gorm.io/gorm"

type Exam struct {
	gorm.Model
	Title       string
	Description string
	Topic       string
	University  string
	Status      string `gorm:"default:draft"` // draft, published, archived
	AuthorID    uint
	Questions   []ExamQuestion
}

type ExamQuestion struct {
	gorm.Model
	ExamID        uint
	Type          string // multiple_choice, true_false
	Text          string
	Options       string // JSON array of options, empty for true_false
	CorrectAnswer int
	SequenceOrder int
}
