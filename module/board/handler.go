package board

import (
	"github.com/gin-gonic/gin"

	"NioBoard/global"
	midsec "NioBoard/middleware/security"
	"NioBoard/tools/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes wires /modules and /charts under the authed API group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	mods := api.Group("/modules")
	mods.GET("", h.listAccessible)
	mods.GET("/all", h.listAll)

	charts := api.Group("/charts")
	charts.GET("/module/:slug", h.chartsForModule)
	charts.POST("", midsec.RequireAdmin(), h.createChart)
	charts.PATCH("/:id/visibility", midsec.RequireAdmin(), h.toggleVisibility)
	charts.DELETE("/:id", midsec.RequireAdmin(), h.deleteChart)
}

func (h *Handler) listAccessible(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	mods, err := h.svc.AccessibleModules(c.Request.Context(), p)
	if err != nil {
		global.Fail(c, err)
		return
	}
	if mods == nil {
		mods = []Module{}
	}
	c.JSON(200, global.Success(mods))
}

func (h *Handler) listAll(c *gin.Context) {
	mods, err := h.svc.AllModules(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(mods))
}

func (h *Handler) chartsForModule(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	charts, err := h.svc.ChartsForModule(c.Request.Context(), p, c.Param("slug"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	if charts == nil {
		charts = []Chart{}
	}
	c.JSON(200, global.Success(charts))
}

type createChartReq struct {
	ModuleID string `json:"moduleId"`
	Title    string `json:"title"`
	EmbedURL string `json:"embedUrl"`
}

func (h *Handler) createChart(c *gin.Context) {
	var req createChartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	chart, err := h.svc.CreateChart(c.Request.Context(), req.ModuleID, req.Title, req.EmbedURL)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(201, global.Success(chart))
}

type visibilityReq struct {
	IsVisible bool `json:"isVisible"`
}

func (h *Handler) toggleVisibility(c *gin.Context) {
	var req visibilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	if err := h.svc.SetChartVisibility(c.Request.Context(), c.Param("id"), req.IsVisible); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}

func (h *Handler) deleteChart(c *gin.Context) {
	if err := h.svc.DeleteChart(c.Request.Context(), c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}
