package main

import (
	"context"
	"errors"
	"fmt"

	"iamcore/internal/models"
	"iamcore/internal/repository"
	"iamcore/internal/services"
	"iamcore/pkg/config"
	apperrors "iamcore/pkg/errors"

	"github.com/sirupsen/logrus"
)

// seeder 初始化内置领域、内置角色和管理员
type seeder struct {
	cfg  config.AuthzConfig
	repo *repository.RelationRepository
	svc  *services.Set
	log  *logrus.Logger
}

// run 幂等，重复执行只补齐缺失的数据；超级管理员始终拥有目录中的全部接口
func (s *seeder) run(ctx context.Context) error {
	s.log.Info("Starting seed data initialization...")

	// 1. 内置领域
	if err := s.ensureDomain(ctx); err != nil {
		return fmt.Errorf("创建内置领域失败: %w", err)
	}

	// 2. 内置角色
	super, err := s.ensureRole(ctx, s.cfg.SuperRoleCode, "超级管理员")
	if err != nil {
		return fmt.Errorf("创建超级管理员角色失败: %w", err)
	}
	if _, err := s.ensureRole(ctx, s.cfg.DefaultRoleCode, "普通用户"); err != nil {
		return fmt.Errorf("创建默认角色失败: %w", err)
	}

	// 3. 管理员账号
	admin, err := s.ensureAdmin(ctx)
	if err != nil {
		return fmt.Errorf("创建管理员失败: %w", err)
	}
	members, err := s.repo.UserIDsByRole(ctx, super.ID)
	if err != nil {
		return err
	}
	if _, err := s.svc.Authorization.SyncUsers(ctx, super.ID, append(members, admin.ID)); err != nil {
		return fmt.Errorf("分配超级管理员失败: %w", err)
	}

	// 4. 超级管理员授权
	endpointIDs, err := s.repo.AllEndpointIDs(ctx)
	if err != nil {
		return err
	}
	result, err := s.svc.Authorization.SyncPermissions(ctx, s.cfg.BuiltInDomain, super.ID, endpointIDs)
	if err != nil {
		return fmt.Errorf("超级管理员授权失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"endpoints": len(endpointIDs),
		"added":     result.Added,
		"removed":   result.Removed,
	}).Info("Seed data initialized")
	return nil
}

func (s *seeder) ensureDomain(ctx context.Context) error {
	_, err := s.repo.FindDomainByCode(ctx, s.cfg.BuiltInDomain)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	_, err = s.svc.Domain.Create(ctx, services.DomainInput{Code: s.cfg.BuiltInDomain, Name: "内置领域"}, "")
	return err
}

func (s *seeder) ensureRole(ctx context.Context, code, name string) (*models.Role, error) {
	role, err := s.repo.FindRoleByCode(ctx, code)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return role, err
	}
	return s.svc.Role.Create(ctx, services.RoleInput{
		Code:   code,
		Name:   name,
		PID:    models.RootRolePID,
		Status: models.StatusEnabled,
	}, "")
}

func (s *seeder) ensureAdmin(ctx context.Context) (*models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, s.cfg.AdminUsername)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return user, err
	}
	return s.svc.User.Create(ctx, services.CreateUserInput{
		Username: s.cfg.AdminUsername,
		Password: s.cfg.AdminPassword,
		Domain:   s.cfg.BuiltInDomain,
		NickName: "管理员",
	}, "")
}
