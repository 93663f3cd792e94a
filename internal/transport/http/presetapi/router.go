// Package presetapi 暴露组合模板的管理接口。
package presetapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"etfviz/internal/logger"
	"etfviz/internal/preset"
)

// Router 处理 preset 管理接口。
type Router struct {
	store *preset.Store
}

func NewRouter(store *preset.Store) *Router {
	return &Router{store: store}
}

// Register 把路由挂到给定分组。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("", r.handleList)
	group.GET("/:name", r.handleGet)
	group.POST("", r.handleCreate)
	group.PUT("/:name", r.handleUpdate)
	group.DELETE("/:name", r.handleDelete)
}

// PresetResponse 是单个模板的返回体。
type PresetResponse struct {
	Name        string   `json:"name"`
	Tickers     []string `json:"tickers"`
	Period      string   `json:"period"`
	Description string   `json:"description,omitempty"`
}

// PresetRequest 是新建/更新模板的请求体。
type PresetRequest struct {
	Name        string   `json:"name"`
	Tickers     []string `json:"tickers"`
	Period      string   `json:"period"`
	Description string   `json:"description"`
}

func entryToResponse(name string, e preset.Entry) PresetResponse {
	return PresetResponse{
		Name:        name,
		Tickers:     e.Tickers,
		Period:      e.Period,
		Description: e.Description,
	}
}

func (r *Router) handleList(c *gin.Context) {
	entries, err := r.store.All()
	if err != nil {
		logger.Errorf("[preset-api] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	presets := make([]PresetResponse, 0, len(entries))
	for name, e := range entries {
		presets = append(presets, entryToResponse(name, e))
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func (r *Router) handleGet(c *gin.Context) {
	name := c.Param("name")
	e, err := r.store.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entryToResponse(name, e))
}

func (r *Router) handleCreate(c *gin.Context) {
	var req PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preset 名不能为空"})
		return
	}
	if !validName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preset 名只能包含字母、数字、下划线和连字符"})
		return
	}
	if _, err := r.store.Get(name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "preset '" + name + "' 已存在"})
		return
	}

	if err := r.store.Save(name, preset.Entry{
		Tickers:     req.Tickers,
		Period:      req.Period,
		Description: req.Description,
	}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Infof("[preset-api] preset '%s' created by %s", name, c.ClientIP())
	saved, _ := r.store.Get(name)
	c.JSON(http.StatusCreated, entryToResponse(name, saved))
}

func (r *Router) handleUpdate(c *gin.Context) {
	name := c.Param("name")

	var req PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	existing, err := r.store.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if len(req.Tickers) > 0 {
		existing.Tickers = req.Tickers
	}
	if req.Period != "" {
		existing.Period = req.Period
	}
	existing.Description = req.Description

	if err := r.store.Save(name, existing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Infof("[preset-api] preset '%s' updated by %s", name, c.ClientIP())
	saved, _ := r.store.Get(name)
	c.JSON(http.StatusOK, entryToResponse(name, saved))
}

func (r *Router) handleDelete(c *gin.Context) {
	name := c.Param("name")
	if err := r.store.Delete(name); err != nil {
		status := http.StatusNotFound
		if strings.Contains(err.Error(), "不可删除") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[preset-api] preset '%s' deleted by %s", name, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func validName(name string) bool {
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
		default:
			return false
		}
	}
	return true
}
