package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

type ProductServiceInterface interface {
	CreateProduct(ctx context.Context, tenantID string, req domain.CreateProductRequest) (domain.CreateProductResponse, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
}

type ProductService struct {
	products repository.ProductRepositoryInterface
	log      *logger.Logger
}

func NewProductService(products repository.ProductRepositoryInterface, lg *logger.Logger) *ProductService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &ProductService{products: products, log: lg}
}

func (s *ProductService) CreateProduct(ctx context.Context, tenantID string, req domain.CreateProductRequest) (domain.CreateProductResponse, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.CreateProductResponse{}, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return domain.CreateProductResponse{}, err
	}

	now := time.Now().UTC()
	p := &domain.Product{
		TenantID:    tenantID,
		ProductID:   uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       domain.RoundMoney(*req.Price),
		Stock:       *req.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.PutProduct(ctx, p); err != nil {
		return domain.CreateProductResponse{}, err
	}
	s.log.InfoCtx(ctx, "product_created", map[string]any{"tenant_id": tenantID, "product_id": p.ProductID, "stock": p.Stock})
	return domain.CreateProductResponse{ProductID: p.ProductID, Name: p.Name, Price: p.Price, Stock: p.Stock}, nil
}

func (s *ProductService) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	return s.products.ListProducts(ctx, tenantID)
}
