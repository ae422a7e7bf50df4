package service

import (
	"context"
	"fmt"
	"time"

	"realtime-collab-be/internal/dto"
	"realtime-collab-be/internal/entity"
	"realtime-collab-be/internal/repository/specification"
	"realtime-collab-be/internal/repository/unitofwork"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICommentService interface {
	Create(ctx context.Context, authorId uuid.UUID, req *dto.CreateCommentRequest) (*dto.CreateCommentResponse, error)
	ListByDocument(ctx context.Context, documentId uuid.UUID, unresolvedOnly bool) ([]*dto.CommentResponse, error)
	Update(ctx context.Context, authorId uuid.UUID, req *dto.UpdateCommentRequest) error
	Resolve(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, authorId, id uuid.UUID) error
}

type commentService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewCommentService(uowFactory unitofwork.RepositoryFactory) ICommentService {
	return &commentService{
		uowFactory: uowFactory,
	}
}

func (s *commentService) Create(ctx context.Context, authorId uuid.UUID, req *dto.CreateCommentRequest) (*dto.CreateCommentResponse, error) {
	comment := &entity.Comment{
		Id:         uuid.New(),
		DocumentId: req.DocumentId,
		BlockId:    req.BlockId,
		AuthorId:   authorId,
		Content:    req.Content,
		CreatedAt:  time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.CommentRepository().Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	return &dto.CreateCommentResponse{Id: comment.Id}, nil
}

func (s *commentService) ListByDocument(ctx context.Context, documentId uuid.UUID, unresolvedOnly bool) ([]*dto.CommentResponse, error) {
	specs := []specification.Specification{
		specification.ByDocumentId{DocumentId: documentId},
		specification.OrderBy{Field: "created_at"},
	}
	if unresolvedOnly {
		specs = append(specs, specification.UnresolvedOnly{})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	comments, err := uow.CommentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, &dto.CommentResponse{
			Id:         c.Id,
			DocumentId: c.DocumentId,
			BlockId:    c.BlockId,
			AuthorId:   c.AuthorId,
			Content:    c.Content,
			Resolved:   c.Resolved,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
	}
	return out, nil
}

func (s *commentService) Update(ctx context.Context, authorId uuid.UUID, req *dto.UpdateCommentRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.CommentRepository()

	comment, err := repo.FindOne(ctx, specification.ByID{ID: req.Id})
	if err != nil {
		return err
	}
	if comment == nil {
		return fiber.NewError(fiber.StatusNotFound, "comment not found")
	}
	if comment.AuthorId != authorId {
		return fiber.NewError(fiber.StatusForbidden, "only the author can edit a comment")
	}

	now := time.Now()
	comment.Content = req.Content
	comment.UpdatedAt = &now
	return repo.Update(ctx, comment)
}

func (s *commentService) Resolve(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.CommentRepository()

	comment, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if comment == nil {
		return fiber.NewError(fiber.StatusNotFound, "comment not found")
	}

	now := time.Now()
	comment.Resolved = true
	comment.UpdatedAt = &now
	return repo.Update(ctx, comment)
}

func (s *commentService) Delete(ctx context.Context, authorId, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.CommentRepository()

	comment, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if comment == nil {
		return fiber.NewError(fiber.StatusNotFound, "comment not found")
	}
	if comment.AuthorId != authorId {
		return fiber.NewError(fiber.StatusForbidden, "only the author can delete a comment")
	}

	return repo.Delete(ctx, id)
}
