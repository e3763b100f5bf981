package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Loader *Loader
}

func NewHandler(loader *Loader) *Handler {
	return &Handler{Loader: loader}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	rg.GET("/tools", append(mw, h.list)...) // GET /api/tools
}

// list always answers 200 with the tools as written in the file; a broken
// catalog file yields [].
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.Loader.LoadDocuments())
}
