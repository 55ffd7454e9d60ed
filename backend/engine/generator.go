package engine

import "fmt"

// Generate builds cfg.VariantCount independent variants of exam. When
// cfg.Seed is set the whole batch is reproducible; otherwise a
// time-seeded source is used.
func Generate(exam *Exam, cfg Config) (*Generation, error) {
	src := NewSource()
	if cfg.Seed != nil {
		src = NewSeededSource(*cfg.Seed)
	}
	return GenerateWithSource(exam, cfg, src)
}

// GenerateWithSource is Generate with an explicit randomness source.
func GenerateWithSource(exam *Exam, cfg Config, src IntSource) (*Generation, error) {
	if cfg.VariantCount < 1 {
		return nil, fmt.Errorf("%w: variant count must be at least 1, got %d", ErrInvalidConfig, cfg.VariantCount)
	}
	if exam == nil || len(exam.Questions) == 0 {
		return nil, fmt.Errorf("%w: exam has no questions", ErrInvalidConfig)
	}

	n := len(exam.Questions)
	variants := make([]Variant, 0, cfg.VariantCount)
	for v := 0; v < cfg.VariantCount; v++ {
		// order[pos] is the canonical index of the question placed at pos.
		order := identity(n)
		if cfg.ShuffleQuestions {
			order = permutation(src, n)
		}

		placements := make([]QuestionPlacement, n)
		for pos, qi := range order {
			q := exam.Questions[qi]
			placement := QuestionPlacement{QuestionID: q.ID, Position: pos}
			if q.Type == MultipleChoice {
				if cfg.ShuffleAnswers {
					placement.OptionOrder = permutation(src, len(q.Options))
				} else {
					placement.OptionOrder = identity(len(q.Options))
				}
			}
			placements[pos] = placement
		}

		variants = append(variants, Variant{Number: v, Placements: placements})
	}

	return &Generation{Exam: exam, Config: cfg, Variants: variants}, nil
}
