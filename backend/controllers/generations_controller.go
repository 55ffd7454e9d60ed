package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/engine"
	"github.com/NarimanMilanfar/exam-generation-system/backend/models"
	"github.com/NarimanMilanfar/exam-generation-system/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GenerationsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewGenerationsController(db *gorm.DB, cfg *config.Config) *GenerationsController {
	return &GenerationsController{DB: db, Cfg: cfg}
}

type GenerateRequest struct {
	VariantCount     int    `json:"variant_count"`
	ShuffleQuestions bool   `json:"shuffle_questions"`
	ShuffleAnswers   bool   `json:"shuffle_answers"`
	Seed             *int64 `json:"seed"`
}

// CreateGeneration runs the variant generator for an exam and persists
// the resulting generation with its variants. Generations are immutable;
// calling this again creates a new one.
func (gc *GenerationsController) CreateGeneration(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid exam ID")
	}

	var input GenerateRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	exam, examModel, err := gc.loadEngineExam(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Exam not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !gc.canManageExam(examModel, userID) {
		return utils.Forbidden(c, "You don't have permission to generate variants for this exam")
	}

	generated, err := engine.Generate(exam, engine.Config{
		VariantCount:     input.VariantCount,
		ShuffleQuestions: input.ShuffleQuestions,
		ShuffleAnswers:   input.ShuffleAnswers,
		Seed:             input.Seed,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidConfig) {
			return utils.BadRequest(c, err.Error())
		}
		return utils.InternalServerError(c, "Could not generate variants")
	}

	generation := models.Generation{
		ExamID:           uint(examID),
		AuthorID:         userID,
		VariantCount:     input.VariantCount,
		ShuffleQuestions: input.ShuffleQuestions,
		ShuffleAnswers:   input.ShuffleAnswers,
		Seed:             input.Seed,
	}
	for _, v := range generated.Variants {
		placements, err := json.Marshal(v.Placements)
		if err != nil {
			return utils.InternalServerError(c, "Could not encode variant")
		}
		generation.Variants = append(generation.Variants, models.Variant{
			Label:      uuid.NewString(),
			Number:     v.Number,
			Placements: string(placements),
		})
	}

	if err := gc.DB.Create(&generation).Error; err != nil {
		return utils.InternalServerError(c, "Could not save generation")
	}

	gc.DB.Create(&models.ActivityLog{
		UserID:       userID,
		Action:       "generation_created",
		ExamID:       uint(examID),
		GenerationID: generation.ID,
		Detail:       fmt.Sprintf("%d variants", input.VariantCount),
	})

	response, err := gc.generationResponse(&generation)
	if err != nil {
		return utils.UnprocessableEntity(c, err.Error())
	}
	return utils.Success(c, fiber.StatusCreated, response)
}

func (gc *GenerationsController) ListGenerations(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid exam ID")
	}

	var exam models.Exam
	if err := gc.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Exam not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !gc.canManageExam(&exam, userID) {
		return utils.Forbidden(c, "You don't have permission to view this exam's generations")
	}

	var generations []models.Generation
	gc.DB.Where("exam_id = ?", examID).Order("created_at DESC").Find(&generations)

	var result []fiber.Map
	for _, g := range generations {
		result = append(result, fiber.Map{
			"id":                g.ID,
			"variant_count":     g.VariantCount,
			"shuffle_questions": g.ShuffleQuestions,
			"shuffle_answers":   g.ShuffleAnswers,
			"seed":              g.Seed,
			"created_at":        g.CreatedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

func (gc *GenerationsController) GetGeneration(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid exam ID")
	}

	generationID, err := strconv.Atoi(c.Params("generationId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid generation ID")
	}

	generation, exam, err := gc.loadGeneration(examID, generationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Generation not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !gc.canManageExam(exam, userID) {
		return utils.Forbidden(c, "You don't have permission to view this generation")
	}

	response, err := gc.generationResponse(generation)
	if err != nil {
		return utils.UnprocessableEntity(c, err.Error())
	}
	return utils.Success(c, fiber.StatusOK, response)
}

// AnalyzeGeneration computes the similarity report for a generation,
// defaulting to the exam's latest one. The report is a read-model: it is
// recomputed from the stored orderings on every call.
func (gc *GenerationsController) AnalyzeGeneration(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid exam ID")
	}

	exam, examModel, err := gc.loadEngineExam(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Exam not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !gc.canManageExam(examModel, userID) {
		return utils.Forbidden(c, "You don't have permission to analyze this exam")
	}

	var generation models.Generation
	query := gc.DB.Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("number ASC")
	}).Where("exam_id = ?", examID)

	if generationParam := c.Query("generation_id"); generationParam != "" {
		generationID, err := strconv.Atoi(generationParam)
		if err != nil {
			return utils.BadRequest(c, "Invalid generation ID")
		}
		query = query.Where("id = ?", generationID)
	} else {
		// Default to the latest generation
		query = query.Order("created_at DESC")
	}

	if err := query.First(&generation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "No generation found for this exam")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	engineGen, err := toEngineGeneration(&generation, exam)
	if err != nil {
		return utils.UnprocessableEntity(c, err.Error())
	}

	report, err := engine.Analyze(engineGen)
	if err != nil {
		if errors.Is(err, engine.ErrMalformedVariant) {
			return utils.UnprocessableEntity(c, err.Error())
		}
		if errors.Is(err, engine.ErrInvalidConfig) {
			return utils.BadRequest(c, err.Error())
		}
		return utils.InternalServerError(c, "Could not analyze generation")
	}

	gc.DB.Create(&models.ActivityLog{
		UserID:       userID,
		Action:       "generation_analyzed",
		ExamID:       uint(examID),
		GenerationID: generation.ID,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"exam_id":       examID,
		"generation_id": generation.ID,
		"report":        report,
	})
}

// loadEngineExam loads an exam with ordered questions and converts it to
// the engine's canonical form.
func (gc *GenerationsController) loadEngineExam(examID int) (*engine.Exam, *models.Exam, error) {
	var exam models.Exam
	if err := gc.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order ASC")
	}).First(&exam, examID).Error; err != nil {
		return nil, nil, err
	}

	canonical := &engine.Exam{ID: exam.ID, Title: exam.Title}
	for _, q := range exam.Questions {
		var options []string
		if q.Options != "" {
			if err := json.Unmarshal([]byte(q.Options), &options); err != nil {
				return nil, nil, fmt.Errorf("question %d has a corrupted options column: %w", q.ID, err)
			}
		}
		canonical.Questions = append(canonical.Questions, engine.Question{
			ID:            q.ID,
			Type:          engine.QuestionType(q.Type),
			Text:          q.Text,
			Options:       options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return canonical, &exam, nil
}

func (gc *GenerationsController) loadGeneration(examID, generationID int) (*models.Generation, *models.Exam, error) {
	var exam models.Exam
	if err := gc.DB.First(&exam, examID).Error; err != nil {
		return nil, nil, err
	}

	var generation models.Generation
	if err := gc.DB.Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("number ASC")
	}).Where("exam_id = ?", examID).First(&generation, generationID).Error; err != nil {
		return nil, nil, err
	}
	return &generation, &exam, nil
}

func (gc *GenerationsController) canManageExam(exam *models.Exam, userID uint) bool {
	if exam.AuthorID == userID {
		return true
	}
	var user models.User
	if err := gc.DB.First(&user, userID).Error; err != nil {
		return false
	}
	return user.Role == "admin"
}

func (gc *GenerationsController) generationResponse(generation *models.Generation) (fiber.Map, error) {
	var variants []fiber.Map
	for _, v := range generation.Variants {
		var placements []engine.QuestionPlacement
		if err := json.Unmarshal([]byte(v.Placements), &placements); err != nil {
			return nil, fmt.Errorf("variant %d has a corrupted placements column", v.Number)
		}
		variants = append(variants, fiber.Map{
			"label":      v.Label,
			"number":     v.Number,
			"placements": placements,
		})
	}

	return fiber.Map{
		"id":                generation.ID,
		"exam_id":           generation.ExamID,
		"variant_count":     generation.VariantCount,
		"shuffle_questions": generation.ShuffleQuestions,
		"shuffle_answers":   generation.ShuffleAnswers,
		"seed":              generation.Seed,
		"created_at":        generation.CreatedAt,
		"variants":          variants,
	}, nil
}

// toEngineGeneration rebuilds the engine's generation from stored rows.
// A variant whose placements column doesn't decode is surfaced as
// malformed rather than silently skipped.
func toEngineGeneration(generation *models.Generation, exam *engine.Exam) (*engine.Generation, error) {
	engineGen := &engine.Generation{
		Exam: exam,
		Config: engine.Config{
			VariantCount:     generation.VariantCount,
			ShuffleQuestions: generation.ShuffleQuestions,
			ShuffleAnswers:   generation.ShuffleAnswers,
			Seed:             generation.Seed,
		},
	}
	for _, v := range generation.Variants {
		var placements []engine.QuestionPlacement
		if err := json.Unmarshal([]byte(v.Placements), &placements); err != nil {
			return nil, fmt.Errorf("%w: variant %d has a corrupted placements column", engine.ErrMalformedVariant, v.Number)
		}
		engineGen.Variants = append(engineGen.Variants, engine.Variant{
			Number:     v.Number,
			Placements: placements,
		})
	}
	return engineGen, nil
}
