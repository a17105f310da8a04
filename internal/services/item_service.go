package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bluefin-labs/enterprise-api/internal/cache"
	"github.com/bluefin-labs/enterprise-api/internal/dtos"
	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/repositories"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// ItemService handles item CRUD with a Redis read-through cache.
// Single items are cached under item:{id}; owner listings under
// items:owner:{id}:{limit}:{offset}. Writes invalidate both.
type ItemService interface {
	Create(ctx context.Context, ownerID uuid.UUID, req *dtos.ItemCreateRequest) (*models.Item, error)
	GetByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Item, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*dtos.ItemListResponse, error)
	Search(ctx context.Context, ownerID uuid.UUID, query string, limit, offset int) (*dtos.ItemListResponse, error)
	Update(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, req *dtos.ItemUpdateRequest) (*models.Item, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

type itemService struct {
	repo     repositories.ItemRepository
	cache    *cache.Manager
	cacheTTL time.Duration
}

func NewItemService(repo repositories.ItemRepository, cacheMgr *cache.Manager, cacheTTL time.Duration) ItemService {
	return &itemService{repo: repo, cache: cacheMgr, cacheTTL: cacheTTL}
}

func itemKey(id uuid.UUID) string {
	return fmt.Sprintf("item:%s", id)
}

func ownerListPattern(ownerID uuid.UUID) string {
	return fmt.Sprintf("items:owner:%s:*", ownerID)
}

func ownerListKey(ownerID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("items:owner:%s:%d:%d", ownerID, limit, offset)
}

func (s *itemService) Create(ctx context.Context, ownerID uuid.UUID, req *dtos.ItemCreateRequest) (*models.Item, error) {
	item := &models.Item{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		OwnerID:     ownerID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if err == utils.ErrItemNameExists {
			return nil, &utils.AppError{
				StatusCode: http.StatusConflict,
				Code:       utils.ErrCodeConflict,
				Message:    "An item with this name already exists",
				Err:        err,
			}
		}
		return nil, err
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt

	s.cache.ClearPattern(ctx, ownerListPattern(ownerID))
	return item, nil
}

func (s *itemService) GetByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Item, error) {
	var cached models.Item
	if err := s.cache.Get(ctx, itemKey(id), &cached); err == nil {
		if cached.OwnerID != ownerID {
			return nil, s.notFound(id)
		}
		return &cached, nil
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.OwnerID != ownerID {
		return nil, s.notFound(id)
	}

	s.cache.Set(ctx, itemKey(id), item, s.cacheTTL)
	return item, nil
}

func (s *itemService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*dtos.ItemListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var cached dtos.ItemListResponse
	if err := s.cache.Get(ctx, ownerListKey(ownerID, limit, offset), &cached); err == nil {
		return &cached, nil
	}

	items, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &dtos.ItemListResponse{Items: make([]dtos.Item, 0, len(items)), Total: total}
	for _, it := range items {
		resp.Items = append(resp.Items, dtos.NewItemFromModel(it))
	}

	s.cache.Set(ctx, ownerListKey(ownerID, limit, offset), resp, s.cacheTTL)
	return resp, nil
}

// Search matches item names case-insensitively. Results are not cached
// since query text makes the key space unbounded.
func (s *itemService) Search(ctx context.Context, ownerID uuid.UUID, query string, limit, offset int) (*dtos.ItemListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.SearchByOwner(ctx, ownerID, query, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountSearchByOwner(ctx, ownerID, query)
	if err != nil {
		return nil, err
	}

	resp := &dtos.ItemListResponse{Items: make([]dtos.Item, 0, len(items)), Total: total}
	for _, it := range items {
		resp.Items = append(resp.Items, dtos.NewItemFromModel(it))
	}
	return resp, nil
}

func (s *itemService) Update(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, req *dtos.ItemUpdateRequest) (*models.Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.OwnerID != ownerID {
		return nil, s.notFound(id)
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	if err := s.repo.Update(ctx, item); err != nil {
		if err == utils.ErrNoRowsUpdated {
			return nil, s.notFound(id)
		}
		return nil, err
	}
	item.UpdatedAt = time.Now()

	s.cache.Delete(ctx, itemKey(id))
	s.cache.ClearPattern(ctx, ownerListPattern(ownerID))
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if err == utils.ErrNoRowsUpdated {
			return s.notFound(id)
		}
		return err
	}
	s.cache.Delete(ctx, itemKey(id))
	s.cache.ClearPattern(ctx, ownerListPattern(ownerID))
	return nil
}

func (s *itemService) notFound(id uuid.UUID) error {
	return &utils.AppError{
		StatusCode: http.StatusNotFound,
		Code:       utils.ErrCodeNotFound,
		Message:    fmt.Sprintf("Item %s not found", id),
	}
}
