package engine

import (
	"fmt"
	"math"
)

// Analyze computes the similarity report for a generation. It reads only
// the final orderings, never the generator's randomness source, so stored
// generations can be re-analyzed at any time with identical results.
func Analyze(gen *Generation) (*SimilarityReport, error) {
	if gen == nil || gen.Exam == nil || len(gen.Exam.Questions) == 0 {
		return nil, fmt.Errorf("%w: generation has no exam questions", ErrInvalidConfig)
	}
	if len(gen.Variants) == 0 {
		return nil, fmt.Errorf("%w: generation has no variants", ErrInvalidConfig)
	}
	if err := validateVariants(gen); err != nil {
		return nil, err
	}

	questionStats := positionStatistics(gen)
	optionStats := optionStatistics(gen)
	overall := aggregate(questionStats, optionStats)
	flags := buildFlags(gen, questionStats, optionStats, overall)

	return &SimilarityReport{
		QuestionSimilarity: questionStats,
		OptionSimilarity:   optionStats,
		Overall:            overall,
		Flags:              flags,
		Recommendations:    buildRecommendations(flags),
	}, nil
}

// validateVariants rejects variants whose position or option arrays are
// not valid permutations before any statistics are computed.
func validateVariants(gen *Generation) error {
	n := len(gen.Exam.Questions)
	byID := make(map[uint]Question, n)
	for _, q := range gen.Exam.Questions {
		byID[q.ID] = q
	}

	for _, v := range gen.Variants {
		if len(v.Placements) != n {
			return fmt.Errorf("%w: variant %d has %d placements, exam has %d questions",
				ErrMalformedVariant, v.Number, len(v.Placements), n)
		}

		positions := make([]int, 0, n)
		seen := make(map[uint]bool, n)
		for _, p := range v.Placements {
			q, ok := byID[p.QuestionID]
			if !ok {
				return fmt.Errorf("%w: variant %d references unknown question %d",
					ErrMalformedVariant, v.Number, p.QuestionID)
			}
			if seen[p.QuestionID] {
				return fmt.Errorf("%w: variant %d places question %d twice",
					ErrMalformedVariant, v.Number, p.QuestionID)
			}
			seen[p.QuestionID] = true
			positions = append(positions, p.Position)

			switch q.Type {
			case MultipleChoice:
				if !isPermutation(p.OptionOrder, len(q.Options)) {
					return fmt.Errorf("%w: variant %d has an invalid option order for question %d",
						ErrMalformedVariant, v.Number, p.QuestionID)
				}
			default:
				if p.OptionOrder != nil {
					return fmt.Errorf("%w: variant %d carries an option order for non-choice question %d",
						ErrMalformedVariant, v.Number, p.QuestionID)
				}
			}
		}

		if !isPermutation(positions, n) {
			return fmt.Errorf("%w: variant %d positions are not a permutation of [0,%d)",
				ErrMalformedVariant, v.Number, n)
		}
	}
	return nil
}

func isPermutation(p []int, n int) bool {
	if len(p) != n {
		return false
	}
	seen := make([]bool, n)
	for _, x := range p {
		if x < 0 || x >= n || seen[x] {
			return false
		}
		seen[x] = true
	}
	return true
}

// positionStatistics computes per-question position stats in canonical
// question order. Each question's column is independent of the others.
func positionStatistics(gen *Generation) []PositionStats {
	questionCount := len(gen.Exam.Questions)
	stats := make([]PositionStats, 0, questionCount)

	for _, q := range gen.Exam.Questions {
		positions := make([]int, 0, len(gen.Variants))
		for _, v := range gen.Variants {
			for _, p := range v.Placements {
				if p.QuestionID == q.ID {
					positions = append(positions, p.Position)
					break
				}
			}
		}

		avg := mean(positions)
		variance := populationVariance(positions, avg)
		stats = append(stats, PositionStats{
			QuestionID:         q.ID,
			Positions:          positions,
			AveragePosition:    avg,
			PositionVariance:   variance,
			PositionSimilarity: similarityScore(variance, questionCount),
		})
	}
	return stats
}

// optionStatistics applies the position construction to every option
// column of every multiple choice question: for canonical option i the
// column holds the slot i lands in per variant.
func optionStatistics(gen *Generation) []OptionStats {
	var stats []OptionStats

	for _, q := range gen.Exam.Questions {
		if q.Type != MultipleChoice {
			continue
		}
		optionCount := len(q.Options)

		permutations := make([][]int, 0, len(gen.Variants))
		for _, v := range gen.Variants {
			for _, p := range v.Placements {
				if p.QuestionID == q.ID {
					permutations = append(permutations, p.OptionOrder)
					break
				}
			}
		}

		// A question without option columns has no order that can vary;
		// it reports as fully stable rather than reducing over zero
		// columns.
		averages := make([]float64, optionCount)
		permutationVariance := 0.0
		optionSimilarity := 1.0
		if optionCount > 0 {
			varianceSum := 0.0
			similaritySum := 0.0
			for opt := 0; opt < optionCount; opt++ {
				slots := make([]int, len(permutations))
				for v, perm := range permutations {
					for slot, canonical := range perm {
						if canonical == opt {
							slots[v] = slot
							break
						}
					}
				}
				avg := mean(slots)
				variance := populationVariance(slots, avg)
				averages[opt] = avg
				varianceSum += variance
				similaritySum += similarityScore(variance, optionCount)
			}
			permutationVariance = varianceSum / float64(optionCount)
			optionSimilarity = similaritySum / float64(optionCount)
		}

		stats = append(stats, OptionStats{
			QuestionID:          q.ID,
			Permutations:        permutations,
			AveragePermutation:  averages,
			PermutationVariance: permutationVariance,
			OptionSimilarity:    optionSimilarity,
		})
	}
	return stats
}

// aggregate reduces the per-question columns into the overall scores.
// With no multiple choice questions the option score defaults to 1.0 and
// is excluded from the combined mean, which then equals the question
// order score alone.
func aggregate(questionStats []PositionStats, optionStats []OptionStats) OverallSimilarity {
	questionOrder := 0.0
	for _, s := range questionStats {
		questionOrder += s.PositionSimilarity
	}
	questionOrder /= float64(len(questionStats))

	overall := OverallSimilarity{
		QuestionOrderSimilarity: questionOrder,
		OptionOrderSimilarity:   1.0,
		CombinedSimilarity:      questionOrder,
	}
	if len(optionStats) > 0 {
		optionOrder := 0.0
		for _, s := range optionStats {
			optionOrder += s.OptionSimilarity
		}
		optionOrder /= float64(len(optionStats))
		overall.OptionOrderSimilarity = optionOrder
		overall.CombinedSimilarity = (questionOrder + optionOrder) / 2
	}
	return overall
}

func buildFlags(gen *Generation, questionStats []PositionStats, optionStats []OptionStats, overall OverallSimilarity) []Flag {
	var flags []Flag

	if len(gen.Variants) >= 2 && identicalVariants(gen.Variants) {
		flags = append(flags, Flag{
			Type:     FlagIdenticalVariants,
			Severity: SeverityError,
			Message:  fmt.Sprintf("All %d variants have identical question and option orderings", len(gen.Variants)),
			Details:  map[string]interface{}{"variant_count": len(gen.Variants)},
		})
	}

	aggregateFlagged := false
	switch {
	case overall.CombinedSimilarity > highSimilarityError:
		aggregateFlagged = true
		flags = append(flags, Flag{
			Type:     FlagHighSimilarity,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Combined similarity %.2f exceeds %.2f; variants are too alike to deter copying", overall.CombinedSimilarity, highSimilarityError),
			Details:  map[string]interface{}{"combined_similarity": overall.CombinedSimilarity},
		})
	case overall.CombinedSimilarity > highSimilarityWarning:
		aggregateFlagged = true
		flags = append(flags, Flag{
			Type:     FlagHighSimilarity,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Combined similarity %.2f exceeds %.2f; randomization is weaker than configured thresholds allow", overall.CombinedSimilarity, highSimilarityWarning),
			Details:  map[string]interface{}{"combined_similarity": overall.CombinedSimilarity},
		})
	}

	// Per-question outliers only matter when the aggregate looks healthy;
	// otherwise the aggregate flag already covers them.
	if !aggregateFlagged {
		for _, s := range questionStats {
			if s.PositionSimilarity > lowRandomization {
				flags = append(flags, Flag{
					Type:     FlagLowRandomization,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("Question %d keeps nearly the same position in every variant", s.QuestionID),
					Details: map[string]interface{}{
						"question_id": s.QuestionID,
						"metric":      "position_similarity",
						"value":       s.PositionSimilarity,
					},
				})
			}
		}
		for _, s := range optionStats {
			if s.OptionSimilarity > lowRandomization {
				flags = append(flags, Flag{
					Type:     FlagLowRandomization,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("Question %d keeps nearly the same option order in every variant", s.QuestionID),
					Details: map[string]interface{}{
						"question_id": s.QuestionID,
						"metric":      "option_similarity",
						"value":       s.OptionSimilarity,
					},
				})
			}
		}
	}

	return flags
}

// buildRecommendations derives fixed advice strings from the fired
// flags, so identical reports always carry identical recommendations.
func buildRecommendations(flags []Flag) []string {
	var recs []string
	var lowRandomizationIDs []uint

	for _, f := range flags {
		switch f.Type {
		case FlagIdenticalVariants:
			recs = append(recs, "Enable question shuffling and/or answer shuffling: every variant is currently identical.")
		case FlagHighSimilarity:
			if f.Severity == SeverityError {
				recs = append(recs, "Variants are highly similar. Enable both shuffle options and generate more variants.")
			} else {
				recs = append(recs, "Variants are moderately similar. Consider enabling additional shuffle options.")
			}
		case FlagLowRandomization:
			if id, ok := f.Details["question_id"].(uint); ok {
				lowRandomizationIDs = append(lowRandomizationIDs, id)
			}
		}
	}

	if len(lowRandomizationIDs) > 0 {
		recs = append(recs, fmt.Sprintf("Review questions %v: their ordering barely changes between variants.", lowRandomizationIDs))
	}
	return recs
}

func identicalVariants(variants []Variant) bool {
	first := variants[0].Placements
	for _, v := range variants[1:] {
		for i, p := range v.Placements {
			if p.QuestionID != first[i].QuestionID || p.Position != first[i].Position {
				return false
			}
			if len(p.OptionOrder) != len(first[i].OptionOrder) {
				return false
			}
			for j, o := range p.OptionOrder {
				if o != first[i].OptionOrder[j] {
					return false
				}
			}
		}
	}
	return true
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func populationVariance(xs []int, avg float64) float64 {
	sum := 0.0
	for _, x := range xs {
		d := float64(x) - avg
		sum += d * d
	}
	return sum / float64(len(xs))
}

// maxVariance is the variance of a discrete uniform distribution over
// [0, k-1], the normalization ceiling for similarity scores.
func maxVariance(k int) float64 {
	return float64(k*k-1) / 12.0
}

// similarityScore maps a position variance into [0,1]: 1.0 means the
// column never moves, 0 means its spread reached the uniform maximum.
func similarityScore(variance float64, k int) float64 {
	if k < 2 {
		return 1.0
	}
	return 1.0 - math.Min(1.0, variance/maxVariance(k))
}
