package handler

import (
	"net/http"
	"time"

	"quota-service/internal/model"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListPartnershipTypes lists every capacity template.
func ListPartnershipTypes(c echo.Context) error {
	if !requireModule(c, "partnership_types") {
		return nil
	}

	templates, err := synchronizer.ListTemplates()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

// GetPartnershipType returns one template by name.
func GetPartnershipType(c echo.Context) error {
	if !requireModule(c, "partnership_types") {
		return nil
	}

	template, err := synchronizer.GetTemplate(c.Param("name"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, template)
}

// CreatePartnershipType adds a new capacity template. Admin only.
func CreatePartnershipType(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "partnership_types") {
		return nil
	}

	var req struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Slots       map[string]int `json:"slots"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse template creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	slots, ok := parseSlots(c, req.Slots)
	if !ok {
		return nil
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	template, err := synchronizer.CreateTemplate(req.Name, req.Description, slots)
	if err != nil {
		return fail(c, err)
	}

	prometheus.TemplateOperationCounter.WithLabelValues("create").Inc()
	log.Info("Partnership template created", zap.String("name", template.Name))
	return c.JSON(http.StatusCreated, echo.Map{
		"message":  "Partnership type created",
		"template": template,
	})
}

// UpdatePartnershipType rewrites a template's slots and cascades the new
// totals to every bound account. The response carries the per-account result
// list; the operation is successful even when some accounts failed, and the
// caller retries those.
func UpdatePartnershipType(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "partnership_types") {
		return nil
	}

	var req struct {
		Slots map[string]int `json:"slots"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse template update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	slots, ok := parseSlots(c, req.Slots)
	if !ok {
		return nil
	}

	defer prometheus.TrackCascade("update")(time.Now())
	template, report, err := synchronizer.UpdateTemplate(c.Request().Context(), c.Param("name"), slots)
	if err != nil {
		return fail(c, err)
	}

	prometheus.TemplateOperationCounter.WithLabelValues("update").Inc()
	prometheus.RecordCascade(len(report.Accounts)-report.Failed(), report.Failed())

	log.Info("Partnership template updated",
		zap.String("name", template.Name),
		zap.Int("accounts", len(report.Accounts)),
		zap.Int("failed", report.Failed()))
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Partnership type updated",
		"template": template,
		"cascade":  report,
	})
}

// DeletePartnershipType removes a template, zeroes every bound account's
// totals and unbinds them. The accounts themselves stay.
func DeletePartnershipType(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "partnership_types") {
		return nil
	}

	defer prometheus.TrackCascade("delete")(time.Now())
	report, err := synchronizer.DeleteTemplate(c.Request().Context(), c.Param("name"))
	if err != nil {
		return fail(c, err)
	}

	prometheus.TemplateOperationCounter.WithLabelValues("delete").Inc()
	prometheus.RecordCascade(len(report.Accounts)-report.Failed(), report.Failed())

	log.Info("Partnership template deleted",
		zap.String("name", c.Param("name")),
		zap.Int("accounts", len(report.Accounts)))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Partnership type deleted",
		"cascade": report,
	})
}

// AssignPartnershipType binds an account to a template (or "N/A" to unbind)
// and overwrites its totals immediately.
func AssignPartnershipType(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "partnership_types") {
		return nil
	}

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse template assignment request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := synchronizer.AssignTemplate(c.Request().Context(), accountID, req.Name); err != nil {
		return fail(c, err)
	}

	prometheus.TemplateOperationCounter.WithLabelValues("assign").Inc()
	log.Info("Partnership template assigned",
		zap.Uint("account_id", accountID),
		zap.String("template", req.Name))
	return c.JSON(http.StatusOK, echo.Map{"message": "Partnership type assigned"})
}

// parseSlots converts a wire slots map into the domain map. On a false return
// the response is already written.
func parseSlots(c echo.Context, raw map[string]int) (map[model.Category]int, bool) {
	slots := make(map[model.Category]int, len(raw))
	for name, count := range raw {
		category, ok := model.ParseCategory(name)
		if !ok {
			c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category in slots"})
			return nil, false
		}
		slots[category] = count
	}
	return slots, true
}
