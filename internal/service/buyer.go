package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/idgen"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

func (s *Service) CreateBuyer(ctx context.Context, req domain.BuyerCreateRequest) (domain.Buyer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Buyer{}, invalid("name is required")
	}

	created, err := s.repo.CreateBuyer(ctx, domain.Buyer{
		ID:      idgen.NewID(),
		Name:    name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Buyer{}, storageErr(err)
	}
	return *created, nil
}

func (s *Service) GetBuyer(ctx context.Context, id string) (domain.Buyer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Buyer{}, invalid("buyer id is required")
	}
	buyer, err := s.repo.GetBuyer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Buyer{}, fmt.Errorf("%w: buyer %s", store.ErrNotFound, id)
		}
		return domain.Buyer{}, storageErr(err)
	}
	return *buyer, nil
}

func (s *Service) ListBuyers(ctx context.Context) ([]domain.Buyer, error) {
	buyers, err := s.repo.ListBuyers(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return buyers, nil
}
