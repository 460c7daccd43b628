package api

import (
	"net/http"

	"pbgui-console/internal/auth"
	"pbgui-console/internal/menu"

	"github.com/gin-gonic/gin"
)

// handleGetAllMenus returns the navigation forest of the caller, composed
// from their roles and gated by their access codes
// GET /api/menu/all
func (s *Server) handleGetAllMenus(c *gin.Context) {
	ctx := c.Request.Context()

	codes, err := s.deps.AuthService.AccessCodes(ctx, auth.GetUsername(c))
	if err != nil {
		s.requestLog(c).WithError(err).Error("Failed to load access codes")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load access codes")
		return
	}

	forest, err := s.deps.Menus.Compose(ctx, auth.GetRoles(c), codes)
	if err != nil {
		s.requestLog(c).WithError(err).Error("Failed to compose menu", "roles", auth.GetRoles(c))
		errorResponse(c, http.StatusInternalServerError, "MENU_UNAVAILABLE", "failed to compose menu")
		return
	}

	successResponse(c, forest)
}

// handleGetMenuList returns the management forest, disabled nodes included
// GET /api/system/menu/list
func (s *Server) handleGetMenuList(c *gin.Context) {
	successResponse(c, s.management())
}

// handleGetMenuIDs returns the ids of the management forest in pre-order
// GET /api/system/menu/ids
func (s *Server) handleGetMenuIDs(c *gin.Context) {
	successResponse(c, menu.FlattenIDs(s.management()))
}

// handleGetMenuRoles lists the roles with an overlay in the current catalog
// GET /api/system/menu/roles
func (s *Server) handleGetMenuRoles(c *gin.Context) {
	snap := s.deps.Registry.Current()
	successResponse(c, gin.H{
		"roles":    snap.Catalog.Store.Roles(),
		"version":  snap.Version,
		"source":   snap.Source,
		"loadedAt": snap.LoadedAt,
	})
}

// handleReloadMenus rebuilds the catalog from its source. A failed reload
// keeps serving the previous catalog.
// POST /api/system/menu/reload
func (s *Server) handleReloadMenus(c *gin.Context) {
	ctx := c.Request.Context()

	snap, err := s.deps.Registry.Reload(ctx)
	if err != nil {
		s.deps.EventBus.PublishError("catalog", "menu catalog reload failed", err)
		errorResponse(c, http.StatusInternalServerError, "CATALOG_RELOAD_FAILED", err.Error())
		return
	}

	s.deps.Menus.Invalidate(ctx)

	roles := snap.Catalog.Store.Roles()
	s.deps.EventBus.PublishCatalogReloaded(snap.Source, snap.Version, roles)
	s.requestLog(c).Info("Menu catalog reloaded", "version", snap.Version, "by", auth.GetUsername(c))

	successResponse(c, gin.H{
		"roles":    roles,
		"version":  snap.Version,
		"source":   snap.Source,
		"loadedAt": snap.LoadedAt,
	})
}

func (s *Server) management() []*menu.Node {
	forest := s.deps.Registry.Current().Catalog.Management
	if forest == nil {
		return []*menu.Node{}
	}
	return forest
}
