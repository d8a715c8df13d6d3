package handlers

import (
	"iamcore/internal/repository"
	"iamcore/internal/services"
	"iamcore/pkg/pagination"
	"iamcore/pkg/response"

	"github.com/gin-gonic/gin"
)

type EndpointHandler struct {
	service *services.EndpointService
}

func NewEndpointHandler(service *services.EndpointService) *EndpointHandler {
	return &EndpointHandler{service: service}
}

// Page 分页查询接口目录
func (h *EndpointHandler) Page(c *gin.Context) {
	pageParams := pagination.Parse(c)
	filter := repository.EndpointFilter{
		Resource:   c.Query("resource"),
		Method:     c.Query("method"),
		Controller: c.Query("controller"),
	}

	endpoints, total, err := h.service.Page(c.Request.Context(), filter, pageParams)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, pagination.NewPage(pageParams, total, endpoints))
}
