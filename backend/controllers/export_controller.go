package controllers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/engine"
	"github.com/NarimanMilanfar/exam-generation-system/backend/models"
	"github.com/NarimanMilanfar/exam-generation-system/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ExportController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewExportController(db *gorm.DB, cfg *config.Config) *ExportController {
	return &ExportController{DB: db, Cfg: cfg}
}

// ExportGeneration downloads a generation's variant orderings as CSV:
// one row per placement, variants in order, placements by position.
func (xc *ExportController) ExportGeneration(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, xc.Cfg)
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

	var exam models.Exam
	if err := xc.DB.First(&exam, examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Exam not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if exam.AuthorID != userID {
		var user models.User
		if err := xc.DB.First(&user, userID).Error; err != nil || user.Role != "admin" {
			return utils.Forbidden(c, "You don't have permission to export this generation")
		}
	}

	var generation models.Generation
	if err := xc.DB.Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("number ASC")
	}).Where("exam_id = ?", examID).First(&generation, generationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Generation not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	rows, err := variantRows(&generation)
	if err != nil {
		return utils.UnprocessableEntity(c, err.Error())
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"variant", "variant_label", "position", "question_id", "option_order"})
	for _, row := range rows {
		w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return utils.InternalServerError(c, "Could not write CSV")
	}

	xc.DB.Create(&models.ActivityLog{
		UserID:       userID,
		Action:       "generation_exported",
		ExamID:       uint(examID),
		GenerationID: generation.ID,
	})

	filename := fmt.Sprintf("exam_%d_generation_%d.csv", examID, generation.ID)
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

func decodePlacements(raw string) ([]engine.QuestionPlacement, error) {
	var placements []engine.QuestionPlacement
	if err := json.Unmarshal([]byte(raw), &placements); err != nil {
		return nil, err
	}
	return placements, nil
}

func variantRows(generation *models.Generation) ([][]string, error) {
	var rows [][]string
	for _, v := range generation.Variants {
		placements, err := decodePlacements(v.Placements)
		if err != nil {
			return nil, fmt.Errorf("variant %d has a corrupted placements column", v.Number)
		}
		for _, p := range placements {
			optionOrder := make([]string, len(p.OptionOrder))
			for i, o := range p.OptionOrder {
				optionOrder[i] = strconv.Itoa(o)
			}
			rows = append(rows, []string{
				strconv.Itoa(v.Number + 1),
				v.Label,
				strconv.Itoa(p.Position),
				strconv.FormatUint(uint64(p.QuestionID), 10),
				strings.Join(optionOrder, "|"),
			})
		}
	}
	return rows, nil
}
