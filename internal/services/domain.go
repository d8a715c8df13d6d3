package services

import (
	"context"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	apperrors "iamcore/pkg/errors"

	"github.com/google/uuid"
)

// DomainInput 创建/更新领域参数
type DomainInput struct {
	ID          string  `json:"id"`
	Code        string  `json:"code" binding:"required,max=50"`
	Name        string  `json:"name" binding:"required,max=100"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

type DomainService struct {
	Deps
}

func NewDomainService(deps Deps) *DomainService {
	return &DomainService{Deps: deps}
}

// Create 创建领域
func (s *DomainService) Create(ctx context.Context, in DomainInput, operator string) (*models.Domain, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.Repo.Exists(ctx, &models.Domain{}, "code", in.Code, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("领域代码 %s 已存在", in.Code)
	}

	domain := &models.Domain{
		BaseModel:   models.BaseModel{ID: uuid.NewString(), CreatedBy: operator},
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Status:      models.StatusEnabled,
	}
	if err := s.Repo.Create(ctx, domain); err != nil {
		return nil, err
	}
	return domain, nil
}

// Update 更新领域；编码已被授权、菜单或用户引用时不允许修改
func (s *DomainService) Update(ctx context.Context, in DomainInput, operator string) (*models.Domain, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, apperrors.Invalid("领域ID不能为空")
	}

	unlock := s.Locks.Shared()
	defer unlock()

	domain, err := s.Repo.FindDomainByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if domain.Code != in.Code {
		if err := s.ensureUnreferenced(ctx, domain.Code); err != nil {
			return nil, err
		}
	}

	var saved *models.Domain
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err = s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		exists, err := tx.Exists(txCtx, &models.Domain{}, "code", in.Code, in.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("领域代码 %s 已存在", in.Code)
		}
		current, err := tx.FindDomainByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		if current.Code != in.Code {
			referenced, err := tx.DomainReferenced(txCtx, current.Code)
			if err != nil {
				return err
			}
			if referenced {
				return apperrors.Conflict("领域代码 %s 已被引用，不能修改", current.Code)
			}
		}

		now := time.Now()
		current.Code = in.Code
		current.Name = in.Name
		current.Description = in.Description
		current.UpdatedAt = &now
		current.UpdatedBy = &operator
		saved = current
		return tx.Save(txCtx, current)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ensureUnreferenced 领域编码未被策略、关联行或用户引用，事务内会再检查一次关联行
func (s *DomainService) ensureUnreferenced(ctx context.Context, code string) error {
	tuples, err := s.Store.GetFilteredPolicy(ctx, policy.FieldDomain, code)
	if err != nil {
		return err
	}
	if len(tuples) > 0 {
		return apperrors.Conflict("领域代码 %s 已被策略引用，不能修改", code)
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	referenced, err := s.Repo.DomainReferenced(dbCtx, code)
	if err != nil {
		return err
	}
	users, err := s.Repo.UserCountByDomain(dbCtx, code)
	if err != nil {
		return err
	}
	if referenced || users > 0 {
		return apperrors.Conflict("领域代码 %s 已被引用，不能修改", code)
	}
	return nil
}
