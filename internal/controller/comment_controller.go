package controller

import (
	"realtime-collab-be/internal/dto"
	"realtime-collab-be/internal/pkg/serverutils"
	"realtime-collab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICommentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	ListByDocument(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type commentController struct {
	commentService service.ICommentService
}

func NewCommentController(commentService service.ICommentService) ICommentController {
	return &commentController{
		commentService: commentService,
	}
}

func (c *commentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/comment/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("document/:documentId", c.ListByDocument)
	h.Put(":id", c.Update)
	h.Put(":id/resolve", c.Resolve)
	h.Delete(":id", c.Delete)
}

func (c *commentController) Create(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateCommentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.commentService.Create(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create comment", res))
}

func (c *commentController) ListByDocument(ctx *fiber.Ctx) error {
	documentId, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	unresolvedOnly := ctx.QueryBool("unresolved", false)

	res, err := c.commentService.ListByDocument(ctx.Context(), documentId, unresolvedOnly)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list comments", res))
}

func (c *commentController) Update(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, _ := uuid.Parse(ctx.Params("id"))

	var req dto.UpdateCommentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.Id = id

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.commentService.Update(ctx.Context(), userId, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update comment", nil))
}

func (c *commentController) Resolve(ctx *fiber.Ctx) error {
	id, _ := uuid.Parse(ctx.Params("id"))

	if err := c.commentService.Resolve(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve comment", nil))
}

func (c *commentController) Delete(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, _ := uuid.Parse(ctx.Params("id"))

	if err := c.commentService.Delete(ctx.Context(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete comment", nil))
}
