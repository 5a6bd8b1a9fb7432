package api

import (
	"fmt"
	"net/http"
	"strconv"

	"tally-service/internal/middleware"
	"tally-service/internal/service"
	"tally-service/internal/service/session"
	"tally-service/internal/ws"
	appErr "tally-service/pkg/errors"
	"tally-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Session)

	r.Use(middleware.RequestLogger())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/tallyService/v1")
	{
		v1.POST("/sessions", handler.CreateSession)

		sessionGroup := v1.Group("/sessions/:id")
		{
			sessionGroup.GET("", handler.GetSession)
			sessionGroup.POST("/points", handler.AddPoint)
			sessionGroup.POST("/rounds/end", handler.EndRound)
			sessionGroup.POST("/rounds/reset", handler.ResetRound)
			sessionGroup.POST("/undo", handler.Undo)
			sessionGroup.POST("/end", handler.EndSession)
			sessionGroup.POST("/restart", handler.Restart)
			sessionGroup.GET("/ranking", handler.GetRanking)
			sessionGroup.GET("/qr", handler.GetQRCode)
		}
	}

	r.GET("/ws/session/:sessionId", wsHandler.HandleSessionWS)
}

type createSessionBody struct {
	Names []string `json:"names" binding:"required"`
}

type addPointBody struct {
	PlayerIndex *int `json:"playerIndex" binding:"required"`
}

type restartBody struct {
	Names []string `json:"names"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	rt, err := h.services.Session.Create(body.Names)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, rt.Snapshot())
}

func (h *Handler) GetSession(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}
	response.Success(c, rt.Snapshot())
}

func (h *Handler) AddPoint(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var body addPointBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := rt.AddPoint(*body.PlayerIndex)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) EndRound(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	state, err := rt.EndRound()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) ResetRound(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	state, err := rt.ResetRound()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) Undo(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	state, err := rt.Undo()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) EndSession(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	result, err := rt.EndSession()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Restart(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var body restartBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	state, err := rt.Restart(body.Names)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) GetRanking(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	ranking, err := rt.Ranking()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Success(c, gin.H{"ranking": ranking})
}

// GetQRCode renders a PNG QR code pointing at the session, for handing the
// scoreboard to other phones at the table.
func (h *Handler) GetQRCode(c *gin.Context) {
	rt, ok := h.lookupSession(c)
	if !ok {
		return
	}

	size := 256
	if raw := c.Query("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 64 && parsed <= 1024 {
			size = parsed
		}
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/tallyService/v1/sessions/%s", scheme, c.Request.Host, rt.ID())

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to generate qr code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) lookupSession(c *gin.Context) (*session.Runtime, bool) {
	rt, err := h.services.Session.Get(c.Param("id"))
	if err != nil {
		handleSessionError(c, err)
		return nil, false
	}
	return rt, true
}

func handleSessionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch err {
	case appErr.ErrTooFewPlayers, appErr.ErrPlayerIndexOutOfRange:
		status = http.StatusBadRequest
	case appErr.ErrSessionNotFound:
		status = http.StatusNotFound
	case appErr.ErrGameEnded, appErr.ErrNothingToUndo, appErr.ErrSessionNotStarted:
		status = http.StatusConflict
	}
	response.Error(c, status, err.Error())
}
