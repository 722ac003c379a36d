package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohans/nsforge/internal/auth"
	"github.com/mohans/nsforge/internal/lifecycle"
	"github.com/mohans/nsforge/internal/models"
)

// Registrations is the domain side of the lifecycle manager.
type Registrations interface {
	Submit(ctx context.Context, userID, name string) (lifecycle.Submission, error)
	Lookup(ctx context.Context, userID, name string) (*models.Domain, error)
	List(ctx context.Context, userID string) ([]models.Domain, error)
	Remove(ctx context.Context, userID, name string) error
}

type TaskStatuses interface {
	Status(ctx context.Context, taskID, userID string) (lifecycle.StatusReport, error)
}

type Handler struct {
	regs   Registrations
	status TaskStatuses
	auth   *auth.Service
	ping   func(ctx context.Context) error
}

// RegisterRoutes mounts the API on e. ping, when set, is checked by the
// health endpoint.
func RegisterRoutes(e *echo.Echo, regs Registrations, status TaskStatuses, authSvc *auth.Service, ping func(ctx context.Context) error) {
	h := &Handler{regs: regs, status: status, auth: authSvc, ping: ping}

	e.GET("/", h.Health)

	a := e.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)

	ns := e.Group("/nameservers", authSvc.Middleware())
	ns.POST("/create", h.CreateNameservers)
	ns.GET("/", h.ListDomains)
	ns.GET("/:domain", h.GetNameservers)
	ns.DELETE("/:domain", h.DeleteNameservers)

	tasks := e.Group("/tasks", authSvc.Middleware())
	tasks.GET("/status/:task_id", h.TaskStatus)
}

func (h *Handler) Health(c echo.Context) error {
	if h.ping != nil {
		if err := h.ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "message": "Nameserver registration API is running"})
}

func (h *Handler) RegisterUser(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	u, err := h.auth.Register(c.Request().Context(), req.Email, req.Password, req.FullName)
	switch {
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, u)
}

// Login accepts an OAuth2 password form (username, password) or the same
// fields as JSON.
func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	user := req.Username
	if user == "" {
		user = req.Email
	}
	token, err := h.auth.Authenticate(c.Request().Context(), user, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) CreateNameservers(c echo.Context) error {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	name, err := lifecycle.NormalizeDomain(req.Domain)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	sub, err := h.regs.Submit(c.Request().Context(), auth.CurrentUser(c).ID, name)
	if err != nil {
		return writeError(c, err, "Domain not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "Domain registration started",
		"domain_id": sub.DomainID,
		"task_id":   sub.TaskID,
	})
}

func (h *Handler) ListDomains(c echo.Context) error {
	domains, err := h.regs.List(c.Request().Context(), auth.CurrentUser(c).ID)
	if err != nil {
		return writeError(c, err, "")
	}
	if domains == nil {
		domains = []models.Domain{}
	}
	return c.JSON(http.StatusOK, domains)
}

func (h *Handler) GetNameservers(c echo.Context) error {
	d, err := h.regs.Lookup(c.Request().Context(), auth.CurrentUser(c).ID, lookupName(c.Param("domain")))
	if err != nil {
		return writeError(c, err, "Domain not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteNameservers(c echo.Context) error {
	err := h.regs.Remove(c.Request().Context(), auth.CurrentUser(c).ID, lookupName(c.Param("domain")))
	var rerr *lifecycle.RegistrarError
	if errors.As(err, &rerr) {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete domain from Cloudflare: " + rerr.Message})
	}
	if err != nil {
		return writeError(c, err, "Domain not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Domain deleted successfully"})
}

func (h *Handler) TaskStatus(c echo.Context) error {
	rep, err := h.status.Status(c.Request().Context(), c.Param("task_id"), auth.CurrentUser(c).ID)
	if err != nil {
		return writeError(c, err, "Task not found")
	}
	return c.JSON(http.StatusOK, rep)
}

// lookupName normalizes a path parameter the same way submissions are, so
// "Example.COM" finds "example.com". Invalid names are looked up verbatim and
// simply miss.
func lookupName(raw string) string {
	if name, err := lifecycle.NormalizeDomain(raw); err == nil {
		return name
	}
	return raw
}

func writeError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, lifecycle.ErrConflict), errors.Is(err, lifecycle.ErrInvalidDomain):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound})
	case errors.Is(err, lifecycle.ErrDispatch):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	slog.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
