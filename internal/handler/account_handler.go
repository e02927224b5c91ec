package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"quota-service/internal/apperr"
	"quota-service/internal/model"
	"quota-service/pkg/database"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateAccount provisions a console account. Role assignment follows the
// privilege rules: Admin creates anyone, Super User creates User accounts.
// Login itself is handled by the external identity provider.
func CreateAccount(c echo.Context) error {
	log := logger.FromContext(c)

	if !requireModule(c, "accounts") {
		return nil
	}

	callerRoleVal, _ := callerRole(c)

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse account creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password is required"})
	}

	role := model.RoleUser
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		role = parsed
	}
	if !callerRoleVal.CanAdminister(role) {
		log.Warn("Account creation denied",
			zap.String("caller_role", string(callerRoleVal)),
			zap.String("requested_role", string(role)))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient privileges for requested role"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account creation failed"})
	}

	account := model.Account{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     role,
		Active:   true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&account); result.Error != nil {
		log.Error("Failed to create account", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account creation failed"})
	}

	log.Info("Account created",
		zap.Uint("id", account.ID),
		zap.String("email", account.Email),
		zap.String("role", string(account.Role)))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Account created successfully",
		"account": account,
	})
}

// ListAccounts lists accounts with their quota rows preloaded.
func ListAccounts(c echo.Context) error {
	if !requireModule(c, "accounts") {
		return nil
	}

	var accounts []model.Account
	if err := database.GetDB().Preload("Quotas").Order("id").Find(&accounts).Error; err != nil {
		logger.FromContext(c).Error("Failed to list accounts", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve accounts"})
	}
	return c.JSON(http.StatusOK, accounts)
}

// GetAccount returns one account with quotas and awards.
func GetAccount(c echo.Context) error {
	if !requireModule(c, "accounts") {
		return nil
	}

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	var account model.Account
	err := database.GetDB().Preload("Quotas").Preload("Awards").First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		logger.FromContext(c).Error("Failed to load account", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve account"})
	}
	return c.JSON(http.StatusOK, account)
}

// UpdateAccount edits an account. A User may edit only its own non-privileged
// fields (name, password); role and active changes follow the privilege
// rules, and a role change is an Admin edit exclusively.
func UpdateAccount(c echo.Context) error {
	log := logger.FromContext(c)

	callerRoleVal, _ := callerRole(c)
	selfID, _ := callerID(c)

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	account, err := loadAccount(accountID)
	if err != nil {
		return fail(c, err)
	}

	self := account.ID == selfID
	if !self && !callerRoleVal.CanAdminister(account.Role) {
		log.Warn("Account edit denied",
			zap.Uint("caller", selfID),
			zap.Uint("target", accountID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var req struct {
		Name     *string `json:"name"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
		Active   *bool   `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse account update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account update failed"})
		}
		updates["password"] = string(hashed)
	}
	if req.Role != nil {
		if callerRoleVal != model.RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only an admin can change roles"})
		}
		role, okRole := model.ParseRole(*req.Role)
		if !okRole {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		updates["role"] = role
	}
	if req.Active != nil {
		if self && !callerRoleVal.CanAdminister(account.Role) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot change own active flag"})
		}
		updates["active"] = *req.Active
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(account).Updates(updates).Error; err != nil {
		log.Error("Failed to update account", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account update failed"})
	}

	log.Info("Account updated", zap.Uint("id", accountID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Account updated successfully"})
}

// AddAward attaches an award record to an account; award-gated modules
// become visible once a matching award exists. Admin only.
func AddAward(c echo.Context) error {
	log := logger.FromContext(c)

	accountID, ok := parseUintParam(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	if _, err := loadAccount(accountID); err != nil {
		return fail(c, err)
	}

	var req struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse award request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type is required"})
	}

	award := model.Award{AccountID: accountID, Type: req.Type, Title: req.Title}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&award).Error; err != nil {
		log.Error("Failed to create award", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "award creation failed"})
	}

	log.Info("Award added",
		zap.Uint("account_id", accountID),
		zap.String("type", req.Type))
	return c.JSON(http.StatusCreated, award)
}

// loadAccount fetches an account and classifies its absence.
func loadAccount(accountID uint) (*model.Account, error) {
	var account model.Account
	err := database.GetDB().First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("account %d not found", accountID)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &account, nil
}

// parseUintParam parses a numeric path or query parameter.
func parseUintParam(s string) (uint, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
