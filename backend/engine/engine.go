package engine

import "errors"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// Question is one canonical exam question. Options keeps the author's
// original order; true/false questions carry no option list.
type Question struct {
	ID            uint
	Type          QuestionType
	Text          string
	Options       []string
	CorrectAnswer int
}

// Exam is the canonical exam a generation is built from. The generator
// and analyzer never mutate it.
type Exam struct {
	ID        uint
	Title     string
	Questions []Question
}

// Config controls one generation run. With both shuffle flags off every
// variant is identical to the canonical ordering; that is a valid
// configuration and the analyzer is responsible for flagging it.
type Config struct {
	VariantCount     int
	ShuffleQuestions bool
	ShuffleAnswers   bool
	Seed             *int64
}

// QuestionPlacement pins one question inside a variant: the slot it
// occupies and, for multiple choice, the order its options appear in.
// OptionOrder holds indices into the canonical option list.
type QuestionPlacement struct {
	QuestionID  uint  `json:"question_id"`
	Position    int   `json:"position"`
	OptionOrder []int `json:"option_order,omitempty"`
}

// Variant is one randomized paper. Placements are ordered by position
// and the positions form a permutation of [0, questionCount).
type Variant struct {
	Number     int                 `json:"number"`
	Placements []QuestionPlacement `json:"placements"`
}

// Generation is the immutable batch produced by one Generate call.
// Regeneration always builds a new Generation.
type Generation struct {
	Exam     *Exam
	Config   Config
	Variants []Variant
}

var (
	// ErrInvalidConfig marks caller input errors: a variant count below
	// one or an exam without questions.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrMalformedVariant marks a variant whose position or option
	// arrays are not valid permutations, e.g. a corrupted stored record.
	ErrMalformedVariant = errors.New("malformed variant")
)
