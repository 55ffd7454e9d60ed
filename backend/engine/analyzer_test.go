package engine

import (
	"encoding/json"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trueFalseExam(ids ...uint) *Exam {
	exam := &Exam{ID: 2, Title: "True/false only"}
	for _, id := range ids {
		exam.Questions = append(exam.Questions, Question{ID: id, Type: TrueFalse, CorrectAnswer: 0})
	}
	return exam
}

// placements builds a true/false variant from question IDs listed in
// position order.
func placements(ids ...uint) []QuestionPlacement {
	out := make([]QuestionPlacement, len(ids))
	for pos, id := range ids {
		out[pos] = QuestionPlacement{QuestionID: id, Position: pos}
	}
	return out
}

func TestAnalyzeIdenticalVariants(t *testing.T) {
	exam := fixtureExam()

	gen, err := Generate(exam, Config{VariantCount: 3})
	require.NoError(t, err)

	report, err := Analyze(gen)
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.Overall.QuestionOrderSimilarity)
	assert.Equal(t, 1.0, report.Overall.OptionOrderSimilarity)
	assert.Equal(t, 1.0, report.Overall.CombinedSimilarity)

	types := flagTypes(report.Flags)
	assert.Contains(t, types, FlagIdenticalVariants)
	assert.Contains(t, types, FlagHighSimilarity)
	for _, f := range report.Flags {
		if f.Type == FlagIdenticalVariants || f.Type == FlagHighSimilarity {
			assert.Equal(t, SeverityError, f.Severity)
		}
	}
	assert.NotEmpty(t, report.Recommendations)
}

func TestAnalyzeSingleVariant(t *testing.T) {
	exam := fixtureExam()

	gen, err := Generate(exam, Config{VariantCount: 1, ShuffleQuestions: true, ShuffleAnswers: true, Seed: seedPtr(5)})
	require.NoError(t, err)

	report, err := Analyze(gen)
	require.NoError(t, err)

	// A single variant has zero variance everywhere
	assert.Equal(t, 1.0, report.Overall.CombinedSimilarity)

	var hasError bool
	for _, f := range report.Flags {
		if f.Severity == SeverityError {
			hasError = true
		}
	}
	assert.True(t, hasError, "a single variant must be flagged as an error")

	// One variant can never trip the identical-variants rule
	assert.NotContains(t, flagTypes(report.Flags), FlagIdenticalVariants)
}

func TestAnalyzePositionStatistics(t *testing.T) {
	exam := trueFalseExam(1, 2)
	gen := &Generation{
		Exam: exam,
		Variants: []Variant{
			{Number: 0, Placements: placements(1, 2)},
			{Number: 1, Placements: placements(2, 1)},
		},
	}

	report, err := Analyze(gen)
	require.NoError(t, err)
	require.Len(t, report.QuestionSimilarity, 2)

	// Positions {0,1}: mean 0.5, population variance 0.25, and
	// maxVariance(2) = 0.25, so similarity collapses to 0.
	for _, s := range report.QuestionSimilarity {
		assert.Equal(t, []int{0, 1}, sortedCopy(s.Positions))
		assert.InDelta(t, 0.5, s.AveragePosition, 1e-9)
		assert.InDelta(t, 0.25, s.PositionVariance, 1e-9)
		assert.InDelta(t, 0.0, s.PositionSimilarity, 1e-9)
	}

	assert.InDelta(t, 0.0, report.Overall.QuestionOrderSimilarity, 1e-9)
	assert.Equal(t, 1.0, report.Overall.OptionOrderSimilarity)
	assert.InDelta(t, 0.0, report.Overall.CombinedSimilarity, 1e-9)
	assert.Empty(t, report.Flags)
	assert.Empty(t, report.Recommendations)
}

func TestAnalyzeOptionColumnStatistics(t *testing.T) {
	exam := &Exam{
		ID: 3,
		Questions: []Question{
			{ID: 1, Type: MultipleChoice, Options: []string{"true", "false"}, CorrectAnswer: 0},
		},
	}
	gen := &Generation{
		Exam: exam,
		Variants: []Variant{
			{Number: 0, Placements: []QuestionPlacement{{QuestionID: 1, Position: 0, OptionOrder: []int{0, 1}}}},
			{Number: 1, Placements: []QuestionPlacement{{QuestionID: 1, Position: 0, OptionOrder: []int{1, 0}}}},
		},
	}

	report, err := Analyze(gen)
	require.NoError(t, err)
	require.Len(t, report.OptionSimilarity, 1)

	stats := report.OptionSimilarity[0]
	assert.Equal(t, uint(1), stats.QuestionID)
	assert.Equal(t, [][]int{{0, 1}, {1, 0}}, stats.Permutations)
	// Each option occupies slots {0,1}: mean 0.5, variance 0.25 = maxVariance(2)
	assert.InDelta(t, 0.5, stats.AveragePermutation[0], 1e-9)
	assert.InDelta(t, 0.5, stats.AveragePermutation[1], 1e-9)
	assert.InDelta(t, 0.25, stats.PermutationVariance, 1e-9)
	assert.InDelta(t, 0.0, stats.OptionSimilarity, 1e-9)

	// One question can't move, so question order stays pinned at 1.0
	assert.Equal(t, 1.0, report.Overall.QuestionOrderSimilarity)
	assert.InDelta(t, 0.0, report.Overall.OptionOrderSimilarity, 1e-9)
	assert.InDelta(t, 0.5, report.Overall.CombinedSimilarity, 1e-9)
	assert.NotContains(t, flagTypes(report.Flags), FlagHighSimilarity)
}

func TestAnalyzeZeroMultipleChoiceQuestions(t *testing.T) {
	exam := trueFalseExam(1, 2, 3, 4)

	gen, err := Generate(exam, Config{VariantCount: 20, ShuffleQuestions: true, Seed: seedPtr(11)})
	require.NoError(t, err)

	report, err := Analyze(gen)
	require.NoError(t, err)

	assert.Empty(t, report.OptionSimilarity)
	assert.Equal(t, 1.0, report.Overall.OptionOrderSimilarity)
	assert.False(t, math.IsNaN(report.Overall.CombinedSimilarity))
	// With no option columns the combined score is the question order score
	assert.Equal(t, report.Overall.QuestionOrderSimilarity, report.Overall.CombinedSimilarity)
}

func TestAnalyzeZeroOptionMultipleChoice(t *testing.T) {
	// A multiple choice question with an empty option list has no order
	// to vary; its column must report as fully stable, never NaN.
	exam := &Exam{
		ID: 5,
		Questions: []Question{
			{ID: 1, Type: MultipleChoice, Options: nil, CorrectAnswer: 0},
			{ID: 2, Type: TrueFalse, CorrectAnswer: 1},
		},
	}

	gen, err := Generate(exam, Config{VariantCount: 3, ShuffleQuestions: true, ShuffleAnswers: true, Seed: seedPtr(8)})
	require.NoError(t, err)

	report, err := Analyze(gen)
	require.NoError(t, err)
	require.Len(t, report.OptionSimilarity, 1)

	stats := report.OptionSimilarity[0]
	assert.Equal(t, 1.0, stats.OptionSimilarity)
	assert.Equal(t, 0.0, stats.PermutationVariance)
	assert.Empty(t, stats.AveragePermutation)

	assert.False(t, math.IsNaN(report.Overall.OptionOrderSimilarity))
	assert.False(t, math.IsNaN(report.Overall.CombinedSimilarity))
	assert.GreaterOrEqual(t, report.Overall.CombinedSimilarity, 0.0)
	assert.LessOrEqual(t, report.Overall.CombinedSimilarity, 1.0)
}

func TestAnalyzeSingleQuestionExam(t *testing.T) {
	exam := trueFalseExam(1)

	gen, err := Generate(exam, Config{VariantCount: 5, ShuffleQuestions: true, Seed: seedPtr(2)})
	require.NoError(t, err)

	report, err := Analyze(gen)
	require.NoError(t, err)
	require.Len(t, report.QuestionSimilarity, 1)

	stats := report.QuestionSimilarity[0]
	assert.Equal(t, 0.0, stats.PositionVariance)
	assert.Equal(t, 1.0, stats.PositionSimilarity)
}

func TestAnalyzeSimilarityBounds(t *testing.T) {
	exam := fixtureExam()

	for _, seed := range []int64{1, 17, 4242, 99999} {
		gen, err := Generate(exam, Config{VariantCount: 8, ShuffleQuestions: true, ShuffleAnswers: true, Seed: seedPtr(seed)})
		require.NoError(t, err)

		report, err := Analyze(gen)
		require.NoError(t, err)

		for _, s := range report.QuestionSimilarity {
			assert.GreaterOrEqual(t, s.PositionSimilarity, 0.0)
			assert.LessOrEqual(t, s.PositionSimilarity, 1.0)
		}
		for _, s := range report.OptionSimilarity {
			assert.GreaterOrEqual(t, s.OptionSimilarity, 0.0)
			assert.LessOrEqual(t, s.OptionSimilarity, 1.0)
		}
		assert.GreaterOrEqual(t, report.Overall.CombinedSimilarity, 0.0)
		assert.LessOrEqual(t, report.Overall.CombinedSimilarity, 1.0)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	exam := fixtureExam()

	gen, err := Generate(exam, Config{VariantCount: 10, ShuffleQuestions: true, ShuffleAnswers: true, Seed: seedPtr(42)})
	require.NoError(t, err)

	first, err := Analyze(gen)
	require.NoError(t, err)
	second, err := Analyze(gen)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestAnalyzeLowRandomizationFlag(t *testing.T) {
	// Question 1 is pinned at position 0 while the other four rotate
	// through positions 1-4, keeping the aggregate below the warning
	// threshold.
	exam := trueFalseExam(1, 2, 3, 4, 5)
	gen := &Generation{
		Exam: exam,
		Variants: []Variant{
			{Number: 0, Placements: placements(1, 2, 3, 4, 5)},
			{Number: 1, Placements: placements(1, 3, 4, 5, 2)},
			{Number: 2, Placements: placements(1, 4, 5, 2, 3)},
			{Number: 3, Placements: placements(1, 5, 2, 3, 4)},
		},
	}

	report, err := Analyze(gen)
	require.NoError(t, err)

	// Pinned: similarity 1.0. Rotating: variance 1.25 over maxVariance(5)=2,
	// similarity 0.375. Aggregate (1.0 + 4*0.375)/5 = 0.5.
	assert.InDelta(t, 0.5, report.Overall.CombinedSimilarity, 1e-9)
	assert.NotContains(t, flagTypes(report.Flags), FlagHighSimilarity)

	var flagged []uint
	for _, f := range report.Flags {
		if f.Type == FlagLowRandomization {
			assert.Equal(t, SeverityWarning, f.Severity)
			flagged = append(flagged, f.Details["question_id"].(uint))
		}
	}
	assert.Equal(t, []uint{1}, flagged)
	assert.NotEmpty(t, report.Recommendations)
}

func TestAnalyzeRejectsMalformedVariants(t *testing.T) {
	exam := trueFalseExam(1, 2)

	cases := []struct {
		name     string
		variants []Variant
	}{
		{
			name: "duplicate position",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0},
				{QuestionID: 2, Position: 0},
			}}},
		},
		{
			name: "position out of range",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0},
				{QuestionID: 2, Position: 5},
			}}},
		},
		{
			name: "duplicate question",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0},
				{QuestionID: 1, Position: 1},
			}}},
		},
		{
			name: "unknown question",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0},
				{QuestionID: 9, Position: 1},
			}}},
		},
		{
			name: "missing placement",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0},
			}}},
		},
		{
			name: "option order on true/false question",
			variants: []Variant{{Number: 0, Placements: []QuestionPlacement{
				{QuestionID: 1, Position: 0, OptionOrder: []int{0, 1}},
				{QuestionID: 2, Position: 1},
			}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Analyze(&Generation{Exam: exam, Variants: tc.variants})
			assert.ErrorIs(t, err, ErrMalformedVariant)
		})
	}

	// Invalid option permutation on a multiple choice question
	mcExam := &Exam{ID: 4, Questions: []Question{
		{ID: 1, Type: MultipleChoice, Options: []string{"a", "b", "c"}},
	}}
	_, err := Analyze(&Generation{Exam: mcExam, Variants: []Variant{
		{Number: 0, Placements: []QuestionPlacement{
			{QuestionID: 1, Position: 0, OptionOrder: []int{0, 0, 2}},
		}},
	}})
	assert.ErrorIs(t, err, ErrMalformedVariant)
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	_, err := Analyze(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Analyze(&Generation{Exam: fixtureExam()})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Analyze(&Generation{Exam: &Exam{}, Variants: []Variant{{Number: 0}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func flagTypes(flags []Flag) []string {
	types := make([]string, 0, len(flags))
	for _, f := range flags {
		types = append(types, f.Type)
	}
	return types
}

func sortedCopy(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	return out
}
