package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/deadline"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// GradingHandler exposes the grading pipeline over HTTP.
type GradingHandler struct {
	grading   service.GradingService
	deadlines service.DeadlineService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, deadlines service.DeadlineService, validator *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:   grading,
		deadlines: deadlines,
		validator: validator,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/actions", h.listActions)
	router.Post("/parts/:partID/groups/:groupID/unarchive", h.unarchive)
	router.Get("/parts/:partID/groups/:groupID/readmes", h.readmes)
	router.Post("/parts/:partID/groups/:groupID/actions/:mode", h.perform)
	router.Post("/parts/:partID/actions/:mode/batch", h.performBatch)
	router.Get("/events/:eventID/groups/:groupID/deadline", h.deadline)
	router.Get("/events/:eventID/groups/:groupID/score", h.score)
}

func (h *GradingHandler) listActions(c *fiber.Ctx) error {
	descs := h.grading.ListActions(withRequestContext(c), c.Query("namespace"))
	return utils.SendSuccess(c, "actions retrieved", dto.NewActionDescriptionResponses(descs))
}

func (h *GradingHandler) unarchive(c *fiber.Ctx) error {
	partID, groupID, err := partAndGroup(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.grading.Unarchive(withRequestContext(c), partID, groupID)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "handin unarchived", dto.NewUnarchiveResponse(record))
}

func (h *GradingHandler) readmes(c *fiber.Ctx) error {
	partID, groupID, err := partAndGroup(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	files, err := h.grading.Readmes(withRequestContext(c), partID, groupID)
	if err != nil {
		return h.fail(c, err)
	}
	if files == nil {
		files = []string{}
	}

	return utils.SendSuccess(c, "readmes retrieved", dto.ReadmesResponse{PartID: partID, GroupID: groupID, Files: files})
}

func (h *GradingHandler) perform(c *fiber.Ctx) error {
	partID, groupID, err := partAndGroup(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	mode, err := action.ParseMode(c.Params("mode"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.grading.PerformAction(withRequestContext(c), partID, groupID, mode); err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "action performed", dto.PerformResponse{PartID: partID, GroupID: groupID, Mode: string(mode)})
}

func (h *GradingHandler) performBatch(c *fiber.Ctx) error {
	partID, err := parseUintParam(c, "partID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	mode, err := action.ParseMode(c.Params("mode"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		if fields := validationFields(err); fields != nil {
			return utils.SendErrorWithDetails(c, fiber.StatusUnprocessableEntity, "group_ids must list at least one positive id", fields)
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.grading.PerformBatch(withRequestContext(c), partID, payload.GroupIDs, mode, payload.StopOnError)
	if err != nil {
		return h.fail(c, err)
	}

	resp := dto.NewBatchResponse(partID, mode, result)
	if len(resp.Failures) > 0 {
		requestLogger(h.logger, c).Warn().
			Uint("part_id", partID).
			Str("mode", string(mode)).
			Int("failures", len(resp.Failures)).
			Msg("batch finished with failures")
		return utils.SendSuccessWithStatus(c, fiber.StatusMultiStatus, "batch finished with failures", resp)
	}

	return utils.SendSuccess(c, "batch performed", resp)
}

func (h *GradingHandler) deadline(c *fiber.Ctx) error {
	eventID, groupID, err := eventAndGroup(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.deadlines.Resolve(withRequestContext(c), eventID, groupID)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "deadline resolved", dto.NewDeadlineResponse(result))
}

func (h *GradingHandler) score(c *fiber.Ctx) error {
	eventID, groupID, err := eventAndGroup(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.deadlines.Score(withRequestContext(c), eventID, groupID)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "score computed", dto.NewScoreResponse(result))
}

func (h *GradingHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrPartNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "part not found")
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "group not found")
	case errors.Is(err, service.ErrEventNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "gradable event not found")
	case errors.Is(err, handin.ErrHandinNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "handin not found")
	case errors.Is(err, service.ErrActionNotBound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGroupsRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, action.ErrBindingInvalid),
		errors.Is(err, action.ErrUnknownAction),
		errors.Is(err, deadline.ErrInvalidConfiguration),
		errors.Is(err, archive.ErrArchiveFormat):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, action.ErrExecutionFailed):
		requestLogger(h.logger, c).Warn().Err(err).Msg("action execution failed")
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func partAndGroup(c *fiber.Ctx) (uint, uint, error) {
	partID, err := parseUintParam(c, "partID")
	if err != nil {
		return 0, 0, err
	}
	groupID, err := parseUintParam(c, "groupID")
	if err != nil {
		return 0, 0, err
	}
	return partID, groupID, nil
}

func eventAndGroup(c *fiber.Ctx) (uint, uint, error) {
	eventID, err := parseUintParam(c, "eventID")
	if err != nil {
		return 0, 0, err
	}
	groupID, err := parseUintParam(c, "groupID")
	if err != nil {
		return 0, 0, err
	}
	return eventID, groupID, nil
}
