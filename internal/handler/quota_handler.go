package handler

import (
	"net/http"
	"time"

	"quota-service/internal/model"
	"quota-service/internal/quota"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetAccountQuota reports the full per-category quota of an account. Users
// may read their own; Admin and Super User may read anyone's.
func GetAccountQuota(c echo.Context) error {
	accountID, ok := quotaTargetAccount(c)
	if !ok {
		return nil
	}

	account, err := loadAccount(accountID)
	if err != nil {
		return fail(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	report := make([]quota.Availability, 0, len(model.Categories()))
	for _, category := range model.Categories() {
		av, err := ledger.Available(accountID, category)
		if err != nil {
			return fail(c, err)
		}
		report = append(report, av)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"account_id":       account.ID,
		"partnership_type": account.PartnershipType,
		"unlimited":        account.Role.Unlimited(),
		"quota":            report,
	})
}

// GetAccountQuotaCategory reports one account-category pair.
func GetAccountQuotaCategory(c echo.Context) error {
	accountID, ok := quotaTargetAccount(c)
	if !ok {
		return nil
	}

	category, ok := model.ParseCategory(c.Param("category"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	av, err := ledger.Available(accountID, category)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

// SetQuotaTotal is the administrative override on a single account-category
// total. Template-bound accounts are normally written by the synchronizer
// instead.
func SetQuotaTotal(c echo.Context) error {
	log := logger.FromContext(c)

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}
	category, okCat := model.ParseCategory(c.Param("category"))
	if !okCat {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	var req struct {
		Total int `json:"total"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse quota override request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := ledger.SetTotal(accountID, category, req.Total); err != nil {
		return fail(c, err)
	}

	av, err := ledger.Available(accountID, category)
	if err != nil {
		return fail(c, err)
	}

	log.Info("Quota total overridden",
		zap.Uint("account_id", accountID),
		zap.String("category", string(category)),
		zap.Int("total", req.Total))
	return c.JSON(http.StatusOK, av)
}

// SetQuotaUsed records consumption reported by the attendee-registration
// collaborator. Whether overuse is rejected depends on the configured
// capacity policy.
func SetQuotaUsed(c echo.Context) error {
	log := logger.FromContext(c)

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}
	category, okCat := model.ParseCategory(c.Param("category"))
	if !okCat {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	var req struct {
		Used int `json:"used"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse quota consumption request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := ledger.SetUsed(accountID, category, req.Used); err != nil {
		return fail(c, err)
	}

	av, err := ledger.Available(accountID, category)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

// quotaTargetAccount resolves which account's quota is being read: the
// caller's own, or anyone for roles that may administer other accounts. On a
// false return the response is already written.
func quotaTargetAccount(c echo.Context) (uint, bool) {
	role, ok := callerRole(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		return 0, false
	}
	selfID, _ := callerID(c)

	targetID, okID := parseUintParam(c.Param("id"))
	if !okID {
		c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
		return 0, false
	}

	if targetID != selfID && !role.CanAdminister(model.RoleUser) {
		logger.FromContext(c).Warn("Cross-account quota read denied",
			zap.Uint("caller", selfID),
			zap.Uint("target", targetID))
		c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		return 0, false
	}
	return targetID, true
}
