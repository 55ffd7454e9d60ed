package models

import "gorm.io/gorm"

// Generation is one generator run for an exam. Rows are never updated;
// regenerating inserts a new Generation with its own variants.
type Generation struct {
	gorm.Model
	ExamID           uint
	AuthorID         uint
	VariantCount     int
	ShuffleQuestions bool
	ShuffleAnswers   bool
	Seed             *int64
	Variants         []Variant
}

type Variant struct {
	gorm.Model
	GenerationID uint
	Label        string `gorm:"unique"` // uuid
	Number       int
	Placements   string // JSON array of question placements
}
