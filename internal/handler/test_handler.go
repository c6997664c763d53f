package handler

import (
	"placement-tests/internal/domain"
	"placement-tests/internal/dto"
	"placement-tests/internal/middleware"
	"placement-tests/internal/service"

	"github.com/gofiber/fiber/v2"
)

// TestHandler handles test-related HTTP requests
type TestHandler struct {
	service service.TestService
}

// NewTestHandler creates a new TestHandler instance
func NewTestHandler(service service.TestService) *TestHandler {
	return &TestHandler{
		service: service,
	}
}

// testID returns the id stored by ValidateTestID, falling back to the raw param.
func testID(c *fiber.Ctx) string {
	if id, ok := c.Locals("validated_test_id").(string); ok {
		return id
	}
	return c.Params("id")
}

// ListTests handles GET /api/tests
func (h *TestHandler) ListTests(c *fiber.Ctx) error {
	tests, err := h.service.ListTests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.ToTestListResponse(tests))
}

// ListActiveTests handles GET /api/tests/active
func (h *TestHandler) ListActiveTests(c *fiber.Ctx) error {
	tests, err := h.service.ListActiveTests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.ToTestListResponse(tests))
}

// GetTest handles GET /api/tests/:id
func (h *TestHandler) GetTest(c *fiber.Ctx) error {
	test, err := h.service.GetTest(c.UserContext(), testID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.ToTestResponse(test))
}

// CreateTest handles POST /api/tests
func (h *TestHandler) CreateTest(c *fiber.Ctx) error {
	var req dto.CreateTestRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}

	created, err := h.service.CreateTest(c.UserContext(), req.ToTest())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToTestResponse(created))
}

// UpdateTest handles PATCH /api/tests/:id
func (h *TestHandler) UpdateTest(c *fiber.Ctx) error {
	var req dto.UpdateTestRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}

	updated, err := h.service.UpdateTest(c.UserContext(), testID(c), req.ToPatch())
	if err != nil {
		return err
	}
	return c.JSON(dto.ToTestResponse(updated))
}

// DeleteTest handles DELETE /api/tests/:id
func (h *TestHandler) DeleteTest(c *fiber.Ctx) error {
	if err := h.service.DeleteTest(c.UserContext(), testID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Sync handles POST /api/tests/sync
func (h *TestHandler) Sync(c *fiber.Ctx) error {
	res, err := h.service.Sync(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.SyncResponse{Hydrated: res.Hydrated, Count: res.Count})
}

// ClearCache handles DELETE /api/tests/cache
func (h *TestHandler) ClearCache(c *fiber.Ctx) error {
	h.service.ClearCache(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes mounts the test routes on router. Static segments are
// registered before /:id so they are not captured as ids.
func (h *TestHandler) RegisterRoutes(router fiber.Router, validate *middleware.ValidationMiddleware) {
	tests := router.Group("/tests")
	tests.Get("/", h.ListTests)
	tests.Get("/active", h.ListActiveTests)
	tests.Post("/", h.CreateTest)
	tests.Post("/sync", h.Sync)
	tests.Delete("/cache", h.ClearCache)
	tests.Get("/:id", validate.ValidateTestID(), h.GetTest)
	tests.Patch("/:id", validate.ValidateTestID(), h.UpdateTest)
	tests.Delete("/:id", validate.ValidateTestID(), h.DeleteTest)
}
