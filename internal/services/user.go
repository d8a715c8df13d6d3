package services

import (
	"context"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/repository"
	apperrors "iamcore/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	Username    string  `json:"username" binding:"required,min=3,max=50"`
	Password    string  `json:"password" binding:"required,min=6,max=64"`
	Domain      string  `json:"domain" binding:"required,max=50"`
	NickName    string  `json:"nickName" binding:"required,max=64"`
	Avatar      *string `json:"avatar" binding:"omitempty,max=255"`
	Email       *string `json:"email" binding:"omitempty,email,max=100"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=20"`
}

// UpdateUserInput 更新用户参数，用户名与所属领域不可修改
type UpdateUserInput struct {
	ID          string         `json:"id" binding:"required"`
	NickName    string         `json:"nickName" binding:"required,max=64"`
	Avatar      *string        `json:"avatar" binding:"omitempty,max=255"`
	Email       *string        `json:"email" binding:"omitempty,email,max=100"`
	PhoneNumber *string        `json:"phoneNumber" binding:"omitempty,max=20"`
	Status      *models.Status `json:"status" binding:"omitempty,oneof=ENABLED DISABLED"`
}

type UserService struct {
	Deps
	// DefaultRoleCode 新用户自动获得的角色
	DefaultRoleCode string
}

func NewUserService(deps Deps, defaultRoleCode string) *UserService {
	return &UserService{Deps: deps, DefaultRoleCode: defaultRoleCode}
}

// Create 创建用户，并在同一事务中授予默认角色
func (s *UserService) Create(ctx context.Context, in CreateUserInput, operator string) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	lookupCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	defaultRole, err := s.Repo.FindRoleByCode(lookupCtx, s.DefaultRoleCode)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.NotFound("默认角色 %s 不存在", s.DefaultRoleCode)
		}
		return nil, err
	}
	if defaultRole.Status != models.StatusEnabled {
		return nil, apperrors.NotFound("默认角色 %s 未启用", s.DefaultRoleCode)
	}

	user := &models.User{
		BaseModel:   models.BaseModel{ID: uuid.NewString(), CreatedBy: operator},
		Username:    in.Username,
		Domain:      in.Domain,
		NickName:    in.NickName,
		Avatar:      in.Avatar,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Status:      models.StatusEnabled,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}

	unlock := s.Locks.Lock(defaultRole.ID)
	defer unlock()

	txCtx, cancelTx := s.withTimeout(ctx)
	defer cancelTx()
	err = s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		if _, err := tx.ShareDomain(txCtx, in.Domain); err != nil {
			return err
		}
		exists, err := tx.Exists(txCtx, &models.User{}, "username", in.Username, nil)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("用户名 %s 已存在", in.Username)
		}
		if err := tx.Create(txCtx, user); err != nil {
			return err
		}
		return tx.InsertUserRoles(txCtx, defaultRole.ID, []string{user.ID})
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordMutations("user_role", 1, 0)

	s.Log.WithFields(logrus.Fields{
		"user":   user.Username,
		"domain": user.Domain,
		"role":   defaultRole.Code,
	}).Info("用户创建成功")
	return user, nil
}

// Update 更新用户资料；禁用用户时删除其缓存
func (s *UserService) Update(ctx context.Context, in UpdateUserInput, operator string) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Repo.FindUserByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.NickName = in.NickName
	user.Avatar = in.Avatar
	user.Email = in.Email
	user.PhoneNumber = in.PhoneNumber
	if in.Status != nil {
		user.Status = *in.Status
	}
	user.UpdatedAt = &now
	user.UpdatedBy = &operator
	if err := s.Repo.Save(ctx, user); err != nil {
		return nil, err
	}

	if !user.IsEnabled() {
		if err := s.Cache.Invalidate(ctx, user.ID); err != nil {
			s.diverged("disable_user_cache", "user:"+user.ID, err)
		}
	}
	return user, nil
}
