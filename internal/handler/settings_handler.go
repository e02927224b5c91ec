package handler

import (
	"net/http"
	"time"

	"quota-service/internal/access"
	"quota-service/internal/model"
	"quota-service/pkg/database"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListModuleSettings returns the sparse override table. Missing module/role
// pairs defer to the defaults, which are included for the console's benefit.
func ListModuleSettings(c echo.Context) error {
	if !requireModule(c, "module_settings") {
		return nil
	}

	var settings []model.ModuleSetting
	if err := database.GetDB().Order("key").Find(&settings).Error; err != nil {
		logger.FromContext(c).Error("Failed to load module settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load settings"})
	}

	defaults := make(map[string][]string, len(model.Roles()))
	for _, role := range model.Roles() {
		defaults[role.Slug()] = access.DefaultModules(role)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"overrides": settings,
		"defaults":  defaults,
	})
}

// PutModuleSetting sets one explicit module/role switch. Settings are never
// auto-deleted; an explicit value wins over the defaults until changed again.
func PutModuleSetting(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "module_settings") {
		return nil
	}

	var req struct {
		Module  string `json:"module"`
		Role    string `json:"role"`
		Enabled bool   `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse module setting request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if _, found := access.Lookup(req.Module); !found {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown module"})
	}
	role, okRole := model.ParseRole(req.Role)
	if !okRole {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}

	key := model.ModuleSettingKey(req.Module, role)

	defer prometheus.TrackDBOperation("update")(time.Now())
	db := database.GetDB()

	var setting model.ModuleSetting
	result := db.Where("key = ?", key).First(&setting)
	if result.Error != nil {
		setting = model.ModuleSetting{Key: key, Enabled: req.Enabled}
		if err := db.Create(&setting).Error; err != nil {
			log.Error("Failed to create module setting", zap.String("key", key), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save setting"})
		}
	} else {
		setting.Enabled = req.Enabled
		if err := db.Save(&setting).Error; err != nil {
			log.Error("Failed to update module setting", zap.String("key", key), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save setting"})
		}
	}

	log.Info("Module setting saved",
		zap.String("key", key),
		zap.Bool("enabled", req.Enabled))
	return c.JSON(http.StatusOK, setting)
}
