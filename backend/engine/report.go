package engine

// Flag types raised by the analyzer.
const (
	FlagIdenticalVariants = "IDENTICAL_VARIANTS"
	FlagHighSimilarity    = "HIGH_SIMILARITY"
	FlagLowRandomization  = "LOW_RANDOMIZATION"
)

const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

// Flagging thresholds. Combined similarity above 0.8 is an error, above
// 0.6 a warning; an individual question above 0.9 under an otherwise
// healthy aggregate is reported as low randomization.
const (
	highSimilarityError   = 0.8
	highSimilarityWarning = 0.6
	lowRandomization      = 0.9
)

// PositionStats describes how one question moves across the variants of
// a generation. PositionSimilarity is 1.0 when the question never moves
// and trends to 0 as its spread approaches that of a uniform draw.
type PositionStats struct {
	QuestionID         uint    `json:"question_id"`
	Positions          []int   `json:"positions"`
	AveragePosition    float64 `json:"average_position"`
	PositionVariance   float64 `json:"position_variance"`
	PositionSimilarity float64 `json:"position_similarity"`
}

// OptionStats is the same construction applied to a multiple choice
// question's option orderings. AveragePermutation[i] is the mean slot
// canonical option i lands in; PermutationVariance is the mean variance
// over option columns.
type OptionStats struct {
	QuestionID          uint      `json:"question_id"`
	Permutations        [][]int   `json:"permutations"`
	AveragePermutation  []float64 `json:"average_permutation"`
	PermutationVariance float64   `json:"permutation_variance"`
	OptionSimilarity    float64   `json:"option_similarity"`
}

type OverallSimilarity struct {
	QuestionOrderSimilarity float64 `json:"question_order_similarity"`
	OptionOrderSimilarity   float64 `json:"option_order_similarity"`
	CombinedSimilarity      float64 `json:"combined_similarity"`
}

// Flag is a rule-triggered diagnostic raised when similarity crosses a
// threshold.
type Flag struct {
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// SimilarityReport is a read-model computed on demand from a generation's
// final orderings. Two calls on the same generation produce identical
// reports.
type SimilarityReport struct {
	QuestionSimilarity []PositionStats   `json:"question_similarity"`
	OptionSimilarity   []OptionStats     `json:"option_similarity"`
	Overall            OverallSimilarity `json:"overall_similarity"`
	Flags              []Flag            `json:"flags"`
	Recommendations    []string          `json:"recommendations"`
}
