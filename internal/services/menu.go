package services

import (
	"context"
	"time"

	"iamcore/internal/models"
	apperrors "iamcore/pkg/errors"

	"gorm.io/datatypes"
)

// MenuInput 创建/更新菜单参数
type MenuInput struct {
	ID         uint           `json:"id"`
	PID        uint           `json:"pid"`
	MenuType   string         `json:"menuType" binding:"required,oneof=directory menu"`
	MenuName   string         `json:"menuName" binding:"required,max=64"`
	RouteName  string         `json:"routeName" binding:"required,max=64"`
	RoutePath  string         `json:"routePath" binding:"required,max=128"`
	Component  string         `json:"component" binding:"required,max=64"`
	Icon       *string        `json:"icon" binding:"omitempty,max=64"`
	Order      int            `json:"order"`
	Constant   bool           `json:"constant"`
	HideInMenu bool           `json:"hideInMenu"`
	KeepAlive  bool           `json:"keepAlive"`
	I18nKey    *string        `json:"i18nKey" binding:"omitempty,max=64"`
	Query      datatypes.JSON `json:"query"`
	Status     models.Status  `json:"status" binding:"required,oneof=ENABLED DISABLED"`
}

type MenuService struct {
	Deps
}

func NewMenuService(deps Deps) *MenuService {
	return &MenuService{Deps: deps}
}

// Create 创建菜单
func (s *MenuService) Create(ctx context.Context, in MenuInput, operator string) (*models.Menu, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.checkParent(ctx, in.PID); err != nil {
		return nil, err
	}
	if err := s.checkRouteName(ctx, in.RouteName, nil); err != nil {
		return nil, err
	}

	menu := &models.Menu{CreatedBy: operator}
	applyMenuInput(menu, in)
	if err := s.Repo.Create(ctx, menu); err != nil {
		return nil, err
	}
	return menu, nil
}

// Update 更新菜单
func (s *MenuService) Update(ctx context.Context, in MenuInput, operator string) (*models.Menu, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ID == 0 {
		return nil, apperrors.Invalid("菜单ID不能为空")
	}
	if in.PID == in.ID {
		return nil, apperrors.Conflict("菜单不能以自身为父菜单")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	menu, err := s.Repo.FindMenuByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, in.PID); err != nil {
		return nil, err
	}
	if err := s.checkRouteName(ctx, in.RouteName, in.ID); err != nil {
		return nil, err
	}

	now := time.Now()
	applyMenuInput(menu, in)
	menu.UpdatedAt = &now
	menu.UpdatedBy = &operator
	if err := s.Repo.Save(ctx, menu); err != nil {
		return nil, err
	}
	return menu, nil
}

func (s *MenuService) checkParent(ctx context.Context, pid uint) error {
	if pid == models.RootMenuPID {
		return nil
	}
	_, err := s.Repo.FindMenuByID(ctx, pid)
	return err
}

func (s *MenuService) checkRouteName(ctx context.Context, routeName string, excludeID interface{}) error {
	exists, err := s.Repo.Exists(ctx, &models.Menu{}, "route_name", routeName, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.Conflict("路由名称 %s 已存在", routeName)
	}
	return nil
}

func applyMenuInput(menu *models.Menu, in MenuInput) {
	menu.PID = in.PID
	menu.MenuType = in.MenuType
	menu.MenuName = in.MenuName
	menu.RouteName = in.RouteName
	menu.RoutePath = in.RoutePath
	menu.Component = in.Component
	menu.Icon = in.Icon
	menu.Order = in.Order
	menu.Constant = in.Constant
	menu.HideInMenu = in.HideInMenu
	menu.KeepAlive = in.KeepAlive
	menu.I18nKey = in.I18nKey
	menu.Query = in.Query
	menu.Status = in.Status
}
