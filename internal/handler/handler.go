package handler

import (
	"net/http"

	"quota-service/internal/access"
	"quota-service/internal/apperr"
	"quota-service/internal/model"
	"quota-service/internal/notifier"
	"quota-service/internal/quota"
	"quota-service/pkg/database"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	resolver     *access.Resolver
	ledger       *quota.Ledger
	synchronizer *quota.Synchronizer
	workflow     *quota.Workflow
)

// Init wires the handlers to the core services. Called once from main after
// the database is up.
func Init(l *quota.Ledger, s *quota.Synchronizer, w *quota.Workflow, r *access.Resolver) {
	ledger = l
	synchronizer = s
	workflow = w
	resolver = r
}

// InitDefault wires the handlers against the global database connection.
func InitDefault(sink notifier.Sink, policy quota.CapacityPolicy) {
	db := database.GetDB()
	log := logger.GetLogger()
	w := quota.NewWorkflow(db, log, sink)
	Init(
		quota.NewLedger(db, log, policy),
		quota.NewSynchronizer(db, log, sink),
		w,
		access.NewResolver(&access.GormAwardStore{DB: db}),
	)

	// Seed the gauge from the store so a restart does not drift it negative
	// when requests submitted before the restart get decided afterwards.
	if n, err := w.PendingCount(); err != nil {
		log.Warn("Failed to count pending slot requests", zap.Error(err))
	} else {
		prometheus.PendingRequestsGauge.Set(float64(n))
	}
}

// callerID returns the authenticated account id from the context.
func callerID(c echo.Context) (uint, bool) {
	id, ok := c.Get("account_id").(uint)
	return id, ok
}

// callerRole returns the authenticated role from the context.
func callerRole(c echo.Context) (model.Role, bool) {
	role, ok := c.Get("role").(model.Role)
	return role, ok
}

// requireModule enforces the module gate for the calling role. The resolver
// is the sole authority; handlers never re-implement role checks. A failed
// settings read degrades to the role's defaults rather than blocking. On
// denial the response is already written and the handler must return nil.
func requireModule(c echo.Context, module string) bool {
	log := logger.FromContext(c)

	role, ok := callerRole(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		return false
	}

	overrides, err := access.LoadOverrides(database.GetDB())
	if err != nil {
		log.Warn("Failed to load module settings, falling back to defaults", zap.Error(err))
		overrides = nil
	}

	allowed := resolver.CanAccess(role, module, overrides)
	prometheus.RecordAccessCheck(module, allowed)
	if !allowed {
		log.Warn("Module access denied",
			zap.String("module", module),
			zap.String("role", string(role)))
		c.JSON(http.StatusForbidden, echo.Map{"error": "module not available for role"})
		return false
	}
	return true
}

// fail translates a core error into the JSON the console expects. Validation
// and conflict responses are correctable input; storage responses mean "try
// again".
func fail(c echo.Context, err error) error {
	log := logger.FromContext(c)

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		prometheus.RecordQuotaError("validation")
		log.Warn("Validation rejected", zap.Error(err))
	case apperr.KindNotFound:
		prometheus.RecordQuotaError("not_found")
		log.Warn("Entity not found", zap.Error(err))
	case apperr.KindConflict:
		prometheus.RecordQuotaError("conflict")
		log.Warn("Conflicting transition rejected", zap.Error(err))
	default:
		prometheus.RecordQuotaError("storage")
		log.Error("Storage failure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage error"})
	}
	return c.JSON(apperr.HTTPStatus(err), echo.Map{"error": err.Error()})
}
