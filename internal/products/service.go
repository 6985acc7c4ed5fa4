package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/pkg/db"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	pkgerrors "github.com/freshbulk/freshbulk-backend/pkg/errors"
)

const (
	productNameConstraint = "products_name_key"
	maxDescriptionLength  = 250
	maxNameLength         = 120
)

// Service exposes catalog reads and vendor-owned product management.
type Service interface {
	Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) ([]ProductDTO, error)
	ListVendorProducts(ctx context.Context, vendorID uuid.UUID) ([]ProductDTO, error)
	CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, vendorID, productID uuid.UUID) error
}

type ListProductsInput struct {
	Category *enums.ProductCategory
	Search   string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	PriceCents  int64
	Description string
	Category    enums.ProductCategory
	ImageURL    string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string
	PriceCents  *int64
	Description *string
	Category    *enums.ProductCategory
	ImageURL    *string
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo productRepository
}

func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// Resolve returns the catalog rows for ids keyed by id, read in one query.
// Unknown ids are absent from the map; callers decide whether that is fatal.
func (s *service) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := s.repo.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: resolve products")
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(row), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) ([]ProductDTO, error) {
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		Category: input.Category,
		Search:   strings.ToLower(strings.TrimSpace(input.Search)),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return newProductDTOs(rows), nil
}

func (s *service) ListVendorProducts(ctx context.Context, vendorID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, ListFilter{VendorID: &vendorID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list vendor products")
	}
	return newProductDTOs(rows), nil
}

func (s *service) CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity required")
	}
	row := &models.Product{
		VendorID:    vendorID,
		Name:        strings.TrimSpace(input.Name),
		PriceCents:  input.PriceCents,
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		ImageURL:    strings.TrimSpace(input.ImageURL),
	}
	if err := validateProduct(row); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, mapWriteError(err, "db: insert product")
	}
	return NewProductDTO(row), nil
}

func (s *service) UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	row, err := s.loadOwned(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		row.Name = strings.TrimSpace(*input.Name)
	}
	if input.PriceCents != nil {
		row.PriceCents = *input.PriceCents
	}
	if input.Description != nil {
		row.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		row.Category = *input.Category
	}
	if input.ImageURL != nil {
		row.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	if err := validateProduct(row); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, mapWriteError(err, "db: update product")
	}
	return NewProductDTO(row), nil
}

// DeleteProduct removes a product. Orders keep their item snapshots.
func (s *service) DeleteProduct(ctx context.Context, vendorID, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, vendorID, productID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return row, nil
}

func (s *service) loadOwned(ctx context.Context, vendorID, productID uuid.UUID) (*models.Product, error) {
	row, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if row.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return row, nil
}

func validateProduct(p *models.Product) error {
	details := map[string]string{}
	switch {
	case p.Name == "":
		details["name"] = "is required"
	case len(p.Name) > maxNameLength:
		details["name"] = fmt.Sprintf("must be at most %d characters", maxNameLength)
	}
	if p.PriceCents < 0 {
		details["price"] = "must not be negative"
	}
	if len(p.Description) > maxDescriptionLength {
		details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLength)
	}
	if !p.Category.IsValid() {
		details["category"] = "must be vegetable or fruit"
	}
	if !strings.HasPrefix(p.ImageURL, "http") {
		details["image_url"] = "must be an http(s) url"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	if db.IsUniqueViolation(err, productNameConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a product with this name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
