package controllers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/models"
	"github.com/NarimanMilanfar/exam-generation-system/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These cover the request validation paths that reject before any
// database access, so they run against a nil *gorm.DB.

func validationApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "testsecret"}

	gc := NewGenerationsController(nil, cfg)
	xc := NewExportController(nil, cfg)

	app := fiber.New()
	app.Post("/api/exams/:id/generations", gc.CreateGeneration)
	app.Get("/api/exams/:id/analysis", gc.AnalyzeGeneration)
	app.Get("/api/exams/:id/generations/:generationId/export", xc.ExportGeneration)

	token, err := utils.GenerateJWTToken(1, cfg)
	require.NoError(t, err)
	return app, token
}

func TestCreateGenerationRequiresAuth(t *testing.T) {
	app, _ := validationApp(t)

	req := httptest.NewRequest("POST", "/api/exams/1/generations", strings.NewReader(`{"variant_count":3}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateGenerationRejectsInvalidExamID(t *testing.T) {
	app, token := validationApp(t)

	req := httptest.NewRequest("POST", "/api/exams/abc/generations", strings.NewReader(`{"variant_count":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateGenerationRejectsInvalidBody(t *testing.T) {
	app, token := validationApp(t)

	req := httptest.NewRequest("POST", "/api/exams/1/generations", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeRejectsInvalidExamID(t *testing.T) {
	app, token := validationApp(t)

	req := httptest.NewRequest("GET", "/api/exams/abc/analysis", nil)
	req.Header.Set("Authorization", token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGenerationResponseRejectsCorruptedPlacements(t *testing.T) {
	gc := NewGenerationsController(nil, &config.Config{JWTSecret: "testsecret"})

	generation := &models.Generation{
		ExamID:       1,
		VariantCount: 2,
		Variants: []models.Variant{
			{Label: "a", Number: 0, Placements: `[{"question_id":1,"position":0}]`},
			{Label: "b", Number: 1, Placements: `not json`},
		},
	}

	_, err := gc.generationResponse(generation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant 1")
}

func TestExportRejectsInvalidGenerationID(t *testing.T) {
	app, token := validationApp(t)

	req := httptest.NewRequest("GET", "/api/exams/1/generations/abc/export", nil)
	req.Header.Set("Authorization", token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
