package services

import (
	"context"
	"strings"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/pkg/pagination"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// endpointNamespace 接口ID的命名空间，同一 method+path 总是得到同一个ID
var endpointNamespace = uuid.MustParse("6f1c2b53-3f0e-4d7a-9a8e-2c4b5d6e7f80")

// RouteDescriptor 路由表中一条受保护的路由
type RouteDescriptor struct {
	Method     string
	Path       string
	Resource   string
	Action     string
	Controller string
	Summary    string
}

// EndpointID 由 method 和 path 计算接口ID
func EndpointID(method, path string) string {
	return uuid.NewSHA1(endpointNamespace, []byte(strings.ToUpper(method)+" "+path)).String()
}

// Endpoint 转换为接口目录行
func (d RouteDescriptor) Endpoint() models.Endpoint {
	e := models.Endpoint{
		ID:         EndpointID(d.Method, d.Path),
		Path:       d.Path,
		Method:     strings.ToUpper(d.Method),
		Action:     d.Action,
		Resource:   d.Resource,
		Controller: d.Controller,
	}
	if d.Summary != "" {
		summary := d.Summary
		e.Summary = &summary
	}
	return e
}

// CatalogResult 目录重建结果
type CatalogResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	// 因接口下线被删除的角色权限
	PermissionsRemoved int64 `json:"permissionsRemoved"`
}

// EndpointService 接口目录
type EndpointService struct {
	Deps
}

func NewEndpointService(deps Deps) *EndpointService {
	return &EndpointService{Deps: deps}
}

// SyncCatalog 按路由表重建接口目录：新增、原地更新、删除已下线的接口及引用它们的角色权限
func (s *EndpointService) SyncCatalog(ctx context.Context, scanned []RouteDescriptor) (*CatalogResult, error) {
	unlock := s.Locks.Shared()
	defer unlock()

	desired := make(map[string]models.Endpoint, len(scanned))
	for _, d := range scanned {
		e := d.Endpoint()
		desired[e.ID] = e
	}

	result := &CatalogResult{}
	var gone []models.Endpoint
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		existing, err := tx.AllEndpoints(txCtx)
		if err != nil {
			return err
		}
		current := make(map[string]models.Endpoint, len(existing))
		for _, e := range existing {
			current[e.ID] = e
		}

		now := time.Now()
		var inserts []models.Endpoint
		for id, want := range desired {
			have, ok := current[id]
			if !ok {
				inserts = append(inserts, want)
				continue
			}
			if have.SameAs(want) {
				continue
			}
			want.CreatedAt = have.CreatedAt
			want.UpdatedAt = &now
			if err := tx.Save(txCtx, &want); err != nil {
				return err
			}
			result.Updated++
		}
		if len(inserts) > 0 {
			if err := tx.Create(txCtx, &inserts); err != nil {
				return err
			}
		}
		result.Inserted = len(inserts)

		var goneIDs []string
		for id, e := range current {
			if _, ok := desired[id]; !ok {
				gone = append(gone, e)
				goneIDs = append(goneIDs, id)
			}
		}
		if result.PermissionsRemoved, err = tx.DeleteRolePermissionsByEndpoints(txCtx, goneIDs); err != nil {
			return err
		}
		result.Deleted = len(goneIDs)
		return tx.DeleteEndpoints(txCtx, goneIDs)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordMutations("role_permission", 0, int(result.PermissionsRemoved))

	// 下线接口对应的策略，仍有其它接口使用同一 (resource, action) 时保留
	still := make(map[[2]string]struct{}, len(desired))
	for _, e := range desired {
		still[[2]string{e.Resource, e.Action}] = struct{}{}
	}
	for _, e := range gone {
		if _, ok := still[[2]string{e.Resource, e.Action}]; ok {
			continue
		}
		if err := s.Store.RemoveFilteredPolicy(ctx, policy.FieldResource, e.Resource, e.Action); err != nil {
			s.diverged("sync_catalog", "endpoint:"+e.ID, err)
			break
		}
	}

	s.Log.WithFields(logrus.Fields{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"deleted":  result.Deleted,
	}).Info("接口目录重建完成")
	return result, nil
}

// Page 分页查询接口目录
func (s *EndpointService) Page(ctx context.Context, filter repository.EndpointFilter, params *pagination.PageParams) ([]models.Endpoint, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Repo.PageEndpoints(ctx, filter, params)
}
