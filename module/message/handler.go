package message

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

// RegisterRoutes wires /messages under the authed API group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	msgs := api.Group("/messages")
	msgs.GET("/module/:slug", h.list)
	msgs.POST("/module/:slug", h.post)
	msgs.DELETE("/:id", h.delete)
	msgs.GET("/unread", h.unread)
	msgs.POST("/read/:slug", h.markRead)
}

func (h *Handler) list(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	msgs, err := h.svc.List(c.Request.Context(), p, c.Param("slug"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}
	c.JSON(200, global.Success(msgs))
}

type postReq struct {
	Message string `json:"message"`
}

func (h *Handler) post(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	var req postReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrValidation.WithDetail("malformed body"))
		return
	}
	msg, err := h.svc.Post(c.Request.Context(), p, c.Param("slug"), req.Message)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(201, global.Success(msg))
}

func (h *Handler) delete(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	if err := h.svc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}

func (h *Handler) unread(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	counts, err := h.svc.Unread(c.Request.Context(), p)
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(counts))
}

func (h *Handler) markRead(c *gin.Context) {
	p, _ := midsec.PrincipalFrom(c)
	if err := h.svc.MarkRead(c.Request.Context(), p, c.Param("slug")); err != nil {
		global.Fail(c, err)
		return
	}
	c.JSON(200, global.Success(nil))
}
