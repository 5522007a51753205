package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/service"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Count   *int                `json:"count,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    apperr.Kind         `json:"code,omitempty"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

func failure(msg string) envelope {
	return envelope{Success: false, Error: msg}
}

// RegisterHandlers mounts the public auth routes and the token-protected appointment routes.
func RegisterHandlers(r gin.IRouter, deps Deps) {
	v1 := r.Group("/v1")
	{
		v1.POST("/auth/register", registerHandler(deps.Auth, deps.Log))
		v1.POST("/auth/login", loginHandler(deps.Auth, deps.Log))
	}
	appts := v1.Group("/appointments", JWTAuth(deps.Tokens))
	{
		appts.POST("", createAppointmentHandler(deps.Appointments, deps.Log))
		appts.GET("/:insuredId", listAppointmentsHandler(deps.Appointments, deps.Log))
	}
}

type createAppointmentReq struct {
	InsuredID   string `json:"insuredId"`
	ScheduleID  int64  `json:"scheduleId"`
	CountryCode string `json:"countryCode"`
}

func createAppointmentHandler(svc *service.AppointmentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAppointmentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, failure("invalid request body"))
			return
		}
		if !ownsInsuredID(c, req.InsuredID) {
			c.JSON(http.StatusForbidden, failure("cannot book appointments for another insured id"))
			return
		}
		a, err := svc.Create(c.Request.Context(), req.InsuredID, req.ScheduleID, req.CountryCode)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, envelope{Success: true, Data: a, Message: "appointment is being processed"})
	}
}

func listAppointmentsHandler(svc *service.AppointmentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		insuredID := c.Param("insuredId")
		if !ownsInsuredID(c, insuredID) {
			c.JSON(http.StatusForbidden, failure("cannot list appointments of another insured id"))
			return
		}
		items, err := svc.ListByInsuredID(c.Request.Context(), insuredID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		count := len(items)
		c.JSON(http.StatusOK, envelope{Success: true, Data: gin.H{"items": items}, Count: &count})
	}
}

// ownsInsuredID lets malformed ids through so the service reports them as validation errors.
func ownsInsuredID(c *gin.Context, insuredID string) bool {
	claims := claimsFrom(c)
	if claims == nil {
		return false
	}
	if !model.ValidInsuredID(insuredID) {
		return true
	}
	return model.NormalizeInsuredID(insuredID) == claims.InsuredID
}

func registerHandler(svc *service.AuthService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.RegisterInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, failure("invalid request body"))
			return
		}
		u, err := svc.Register(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, envelope{Success: true, Data: u, Message: "user registered successfully"})
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func loginHandler(svc *service.AuthService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, failure("invalid request body"))
			return
		}
		u, token, exp, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, failure("invalid credentials"))
			return
		}
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, envelope{Success: true, Data: gin.H{
			"token":     token,
			"expiresAt": exp,
			"user": gin.H{
				"id":        u.ID,
				"email":     u.Email,
				"name":      u.Name,
				"insuredId": u.InsuredID,
			},
		}})
	}
}

func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindMessaging:
		status = http.StatusBadGateway
	}

	msg := "internal server error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "error", err)
	}
	c.JSON(status, envelope{Success: false, Error: msg, Code: kind, Fields: apperr.FieldsOf(err)})
}
