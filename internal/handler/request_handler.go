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

// slotItemRequest is one requested capacity unit. The attendee fields are
// optional audit metadata.
type slotItemRequest struct {
	Category      string `json:"category"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
	Position      string `json:"position"`
}

// SubmitSlotRequest files a capacity request for the calling account. Units
// can be given as named slot items and/or as plain per-category counts; the
// counts expand to detail-less items so there is a single canonical
// representation.
func SubmitSlotRequest(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "slot_requests") {
		return nil
	}

	accountID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Reason string            `json:"reason"`
		Items  []slotItemRequest `json:"items"`
		Counts map[string]int    `json:"counts"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse slot request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	items := make([]model.SlotRequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		category, okCat := model.ParseCategory(item.Category)
		if !okCat {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category in items"})
		}
		items = append(items, model.SlotRequestItem{
			Category:      category,
			AttendeeName:  item.AttendeeName,
			AttendeeEmail: item.AttendeeEmail,
			Position:      item.Position,
		})
	}
	for name, count := range req.Counts {
		category, okCat := model.ParseCategory(name)
		if !okCat {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category in counts"})
		}
		if count < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "counts must not be negative"})
		}
		for i := 0; i < count; i++ {
			items = append(items, model.SlotRequestItem{Category: category})
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	request, err := workflow.Submit(c.Request().Context(), accountID, items, req.Reason)
	if err != nil {
		return fail(c, err)
	}

	prometheus.SlotRequestCounter.WithLabelValues("submit").Inc()
	prometheus.PendingRequestsGauge.Inc()

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Slot request submitted",
		"request": request,
	})
}

// ListSlotRequests lists requests. Users see their own; Admin and Super User
// see everything, optionally filtered with ?account_id=.
func ListSlotRequests(c echo.Context) error {
	if !requireModule(c, "slot_requests") {
		return nil
	}

	role, _ := callerRole(c)
	selfID, _ := callerID(c)

	filter := selfID
	if role.CanAdminister(model.RoleUser) {
		filter = 0
		if param := c.QueryParam("account_id"); param != "" {
			if id, ok := parseUintParam(param); ok {
				filter = id
			}
		}
	}

	requests, err := workflow.List(filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, requests)
}

// GetSlotRequest returns one request with its items and, once decided, the
// approved amounts.
func GetSlotRequest(c echo.Context) error {
	if !requireModule(c, "slot_requests") {
		return nil
	}

	requestID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request ID"})
	}

	request, err := workflow.Get(requestID)
	if err != nil {
		return fail(c, err)
	}

	role, _ := callerRole(c)
	selfID, _ := callerID(c)
	if request.AccountID != selfID && !role.CanAdminister(model.RoleUser) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	return c.JSON(http.StatusOK, request)
}

// ApproveSlotRequest grants a pending request, possibly partially. Admin
// only; wired behind RequireAdmin.
func ApproveSlotRequest(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "slot_requests") {
		return nil
	}

	requestID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request ID"})
	}

	var req struct {
		Approved map[string]int `json:"approved"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse approval request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	approved := make(map[model.Category]int, len(req.Approved))
	for name, amount := range req.Approved {
		category, okCat := model.ParseCategory(name)
		if !okCat {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category in approved amounts"})
		}
		approved[category] = amount
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	request, err := workflow.Approve(c.Request().Context(), requestID, approved)
	if err != nil {
		return fail(c, err)
	}

	prometheus.SlotRequestCounter.WithLabelValues("approve").Inc()
	prometheus.PendingRequestsGauge.Dec()

	log.Info("Slot request approved",
		zap.Uint("request_id", requestID),
		zap.Uint("account_id", request.AccountID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Slot request approved",
		"request": request,
	})
}

// DeclineSlotRequest declines a pending request. Admin only.
func DeclineSlotRequest(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "slot_requests") {
		return nil
	}

	requestID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request ID"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	request, err := workflow.Decline(c.Request().Context(), requestID)
	if err != nil {
		return fail(c, err)
	}

	prometheus.SlotRequestCounter.WithLabelValues("decline").Inc()
	prometheus.PendingRequestsGauge.Dec()

	log.Info("Slot request declined", zap.Uint("request_id", requestID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Slot request declined",
		"request": request,
	})
}
