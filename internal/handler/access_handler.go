package handler

import (
	"net/http"

	"quota-service/internal/access"
	"quota-service/internal/model"
	"quota-service/pkg/database"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListModules returns every registered module with the caller's resolved
// access verdict, so the console can render its navigation.
func ListModules(c echo.Context) error {
	log := logger.FromContext(c)

	role, ok := callerRole(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	accountID, _ := callerID(c)

	overrides, err := access.LoadOverrides(database.GetDB())
	if err != nil {
		log.Warn("Failed to load module settings, falling back to defaults", zap.Error(err))
		overrides = nil
	}

	account, err := loadAccount(accountID)
	if err != nil {
		return fail(c, err)
	}

	type moduleView struct {
		Name    string `json:"name"`
		Label   string `json:"label"`
		Enabled bool   `json:"enabled"`
	}

	views := make([]moduleView, 0, len(access.Modules()))
	for _, m := range access.Modules() {
		enabled, err := resolver.CanUse(account, m.Name, overrides)
		if err != nil {
			return fail(c, err)
		}
		views = append(views, moduleView{Name: m.Name, Label: m.Label, Enabled: enabled})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"role":    role,
		"modules": views,
	})
}

// CheckModuleAccess returns the access verdict for one module. The optional
// account_id query parameter lets an Admin check on another account's behalf.
func CheckModuleAccess(c echo.Context) error {
	log := logger.FromContext(c)

	role, ok := callerRole(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	moduleName := c.Param("name")
	if _, found := access.Lookup(moduleName); !found {
		log.Warn("Unknown module queried", zap.String("module", moduleName))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown module"})
	}

	accountID, _ := callerID(c)
	if param := c.QueryParam("account_id"); param != "" && role == model.RoleAdmin {
		if id, ok := parseUintParam(param); ok {
			accountID = id
		}
	}

	account, err := loadAccount(accountID)
	if err != nil {
		return fail(c, err)
	}

	overrides, err := access.LoadOverrides(database.GetDB())
	if err != nil {
		log.Warn("Failed to load module settings, falling back to defaults", zap.Error(err))
		overrides = nil
	}

	allowed, err := resolver.CanUse(account, moduleName, overrides)
	if err != nil {
		return fail(c, err)
	}
	prometheus.RecordAccessCheck(moduleName, allowed)

	return c.JSON(http.StatusOK, echo.Map{
		"module":  moduleName,
		"role":    account.Role,
		"allowed": allowed,
	})
}
