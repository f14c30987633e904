package user

import (
	"context"

	"github.com/gin-gonic/gin"

	"NioBoard/global"
	midsec "NioBoard/middleware/security"
	redisstore "NioBoard/service/storage/redis"
	"NioBoard/tools/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterAuthRoutes wires the unauthenticated login endpoint.
func (h *Handler) RegisterAuthRoutes(api *gin.RouterGroup) {
	api.POST("/auth/login", h.login)
}

// RegisterRoutes wires /users under the authed API group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	users := api.Group("/users")
	users.GET("", midsec.RequireAdmin(), h.list)
	users.POST("", midsec.RequireAdmin(), h.create)
	users.DELETE("/:id", midsec.RequireAdmin(), h.delete)
	users.GET("/:id/modules", midsec.RequireAdmin(), h.getModules)
	users.POST("/:id/modules", midsec.RequireAdmin(), h.setModules)
	users.PATCH("/change-password", h.changePassword)
	users.GET("/online", h.online)
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	token, u, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(gin.H{"token": token, "user": u}))
}

func (h *Handler) list(c *gin.Context) {
	users, err := h.svc.ListNonAdmin(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	c.JSON(200, global.Success(users))
}

type createReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(201, global.Success(u))
}

func (h *Handler) delete(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	if err := h.svc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}

func (h *Handler) getModules(c *gin.Context) {
	mids, err := h.svc.ModuleIDsFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	if mids == nil {
		mids = []string{}
	}
	c.JSON(200, global.Success(mids))
}

type setModulesReq struct {
	ModuleIDs []string `json:"moduleIds"`
}

func (h *Handler) setModules(c *gin.Context) {
	var req setModulesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	if err := h.svc.SetModuleAccess(c.Request.Context(), c.Param("id"), req.ModuleIDs); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}

// online answers "which known users have a live presence key", backed by
// the redis TTL mirror the gateway maintains.
func (h *Handler) online(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.svc.ListNonAdmin(ctx)
	if err != nil {
		global.Fail(c, err)
		return
	}
	admins, err := h.svc.AdminIDs(ctx)
	if err != nil {
		global.Fail(c, err)
		return
	}
	ids := make([]string, 0, len(users)+len(admins))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	ids = append(ids, admins...)
	online, err := onlineFilter(ctx, ids)
	if err != nil {
		global.Fail(c, errs.WrapInfra(err, "presence lookup"))
		return
	}
	if online == nil {
		online = []string{}
	}
	c.JSON(200, global.Success(online))
}

// Swappable in tests; production uses the redis presence mirror.
var onlineFilter = func(ctx context.Context, ids []string) ([]string, error) {
	return redisstore.PresenceOnlineUsers(ctx, ids)
}
