package controller

import (
	"time"

	"realtime-collab-be/internal/dto"
	"realtime-collab-be/internal/pkg/serverutils"
	"realtime-collab-be/internal/repository"
	"realtime-collab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Snapshot(ctx *fiber.Ctx) error
	Analytics(ctx *fiber.Ctx) error
	Conflicts(ctx *fiber.Ctx) error
	ResolveConflict(ctx *fiber.Ctx) error
	Notifications(ctx *fiber.Ctx) error
}

type sessionController struct {
	collabService   service.ICollabService
	consumerService service.IConsumerService
	notifRepo       repository.NotificationRepository
}

func NewSessionController(collabService service.ICollabService, consumerService service.IConsumerService, notifRepo repository.NotificationRepository) ISessionController {
	return &sessionController{
		collabService:   collabService,
		consumerService: consumerService,
		notifRepo:       notifRepo,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Get(":documentId/snapshot", c.Snapshot)
	h.Get(":documentId/analytics", c.Analytics)
	h.Get(":documentId/conflicts", c.Conflicts)
	h.Post(":documentId/conflicts/resolve", c.ResolveConflict)
	h.Get(":documentId/notifications", c.Notifications)
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	res := dto.SessionListResponse{
		Sessions: c.collabService.ListSessions(),
		At:       time.Now(),
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *sessionController) Snapshot(ctx *fiber.Ctx) error {
	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	doc, err := c.collabService.Snapshot(ctx.Context(), documentId)
	if err != nil {
		return err
	}
	if doc == nil {
		return fiber.NewError(fiber.StatusNotFound, "document not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show snapshot", dto.SnapshotResponse{Document: doc}))
}

func (c *sessionController) Analytics(ctx *fiber.Ctx) error {
	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	stats, ok := c.consumerService.Analytics(documentId)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no analytics for document")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show analytics", stats))
}

func (c *sessionController) Conflicts(ctx *fiber.Ctx) error {
	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	conflicts, err := c.collabService.Conflicts(ctx.Context(), documentId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list conflicts", dto.ConflictListResponse{Conflicts: conflicts}))
}

func (c *sessionController) ResolveConflict(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	var req dto.ResolveConflictRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.collabService.ResolveConflict(ctx.Context(), documentId, userId, req.ConflictId, req.Accept); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve conflict", nil))
}

func (c *sessionController) Notifications(ctx *fiber.Ctx) error {
	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	notifications, total, err := c.notifRepo.GetNotificationsByDocumentID(ctx.Context(), documentId, limit, offset)
	if err != nil {
		return err
	}
	unread, err := c.notifRepo.GetUnreadCount(ctx.Context(), documentId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list notifications", dto.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		Unread:        unread,
	}))
}
