package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"party-service/internal/middleware"
	"party-service/internal/model"
	"party-service/internal/service"
	"party-service/internal/service/mafia"
	"party-service/internal/ws"
	pkgAuth "party-service/pkg/auth"
	appErr "party-service/pkg/errors"
	"party-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Engine, services.Bus)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/party/v1")
	{
		v1.POST("/sessions", handler.CreateSession)
		v1.POST("/sessions/:id/join", handler.JoinSession)
		v1.POST("/join/:code", handler.JoinByCode)
		v1.GET("/families/:familyGroupId/sessions", handler.ListFamilySessions)

		player := v1.Group("/sessions/:id")
		player.Use(middleware.PlayerAuthRequired())
		{
			player.GET("", handler.GetSession)
			player.POST("/start", handler.StartGame)
			player.POST("/advance", handler.AdvancePhase)
			player.POST("/actions", handler.SubmitAction)
			player.GET("/deltas", handler.ListDeltas)
			player.GET("/referee", handler.RefereeHistory)
		}
	}

	r.GET("/ws/session/:id", wsHandler.HandleSessionWS)
}

type createSessionBody struct {
	FamilyGroupID        string         `json:"familyGroupId" binding:"required"`
	HostID               string         `json:"hostId" binding:"required"`
	HostName             string         `json:"hostName"`
	LinkedFamilyMemberID string         `json:"linkedFamilyMemberId"`
	Skill                float64        `json:"skill" binding:"min=0,max=1"`
	PreferredRoles       []mafia.Role   `json:"preferredRoles"`
	Settings             mafia.Settings `json:"settings"`
}

type joinBody struct {
	PlayerID             string       `json:"playerId" binding:"required"`
	DisplayName          string       `json:"displayName"`
	LinkedFamilyMemberID string       `json:"linkedFamilyMemberId"`
	Skill                float64      `json:"skill" binding:"min=0,max=1"`
	PreferredRoles       []mafia.Role `json:"preferredRoles"`
}

func (b joinBody) toRequest() mafia.JoinRequest {
	return mafia.JoinRequest{
		PlayerID:             strings.TrimSpace(b.PlayerID),
		DisplayName:          b.DisplayName,
		LinkedFamilyMemberID: b.LinkedFamilyMemberID,
		Skill:                b.Skill,
		PreferredRoles:       b.PreferredRoles,
	}
}

type actionBody struct {
	ID         string         `json:"id"`
	ActionType string         `json:"actionType" binding:"required"`
	TargetID   string         `json:"targetId"`
	Payload    map[string]any `json:"payload"`
}

type seatResponse struct {
	Session *model.GameSession `json:"session"`
	Token   string             `json:"token"`
}

func playerFromContext(c *gin.Context) (sessionID, playerID string) {
	return c.GetString(middleware.ContextSessionIDKey), c.GetString(middleware.ContextPlayerIDKey)
}

func (h *Handler) seat(c *gin.Context, row *model.GameSession, playerID string) {
	token, err := pkgAuth.GeneratePlayerToken(row.ID, playerID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	response.Success(c, seatResponse{Session: row, Token: token})
}

func (h *Handler) CreateSession(c *gin.Context) {
	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.services.Session.Create(c.Request.Context(), mafia.CreateSessionRequest{
		FamilyGroupID:        strings.TrimSpace(body.FamilyGroupID),
		HostID:               strings.TrimSpace(body.HostID),
		HostName:             body.HostName,
		LinkedFamilyMemberID: body.LinkedFamilyMemberID,
		HostSkill:            body.Skill,
		HostPreferredRoles:   body.PreferredRoles,
		Settings:             body.Settings,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.seat(c, row, row.HostID)
}

func (h *Handler) JoinSession(c *gin.Context) {
	var body joinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	row, err := h.services.Session.JoinByID(c.Request.Context(), c.Param("id"), body.toRequest())
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.seat(c, row, body.toRequest().PlayerID)
}

func (h *Handler) JoinByCode(c *gin.Context) {
	var body joinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	row, err := h.services.Session.Join(c.Request.Context(), code, body.toRequest())
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.seat(c, row, body.toRequest().PlayerID)
}

func (h *Handler) ListFamilySessions(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Session.ListByFamily(c.Request.Context(), c.Param("familyGroupId"), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	sessionID, playerID := playerFromContext(c)
	view, err := h.services.Engine.View(c.Request.Context(), sessionID, playerID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) StartGame(c *gin.Context) {
	sessionID, playerID := playerFromContext(c)
	if err := h.services.Session.Start(c.Request.Context(), sessionID, playerID); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"sessionId": sessionID})
}

func (h *Handler) AdvancePhase(c *gin.Context) {
	sessionID, playerID := playerFromContext(c)
	if err := h.services.Engine.AdvancePhase(c.Request.Context(), sessionID, playerID); err != nil {
		response.Fail(c, err)
		return
	}
	st, err := h.services.Engine.View(c.Request.Context(), sessionID, playerID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"phase": st.Phase, "dayNumber": st.DayNumber, "phaseDeadline": st.PhaseDeadline})
}

func (h *Handler) SubmitAction(c *gin.Context) {
	var body actionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, playerID := playerFromContext(c)

	out, err := h.services.Engine.SubmitAction(c.Request.Context(), mafia.ActionRequest{
		ID:         strings.TrimSpace(body.ID),
		SessionID:  sessionID,
		PlayerID:   playerID,
		ActionType: mafia.ActionType(body.ActionType),
		TargetID:   strings.TrimSpace(body.TargetID),
		Payload:    body.Payload,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, out)
}

// ListDeltas exposes the audit log once a game is over; before that it would
// leak hidden roles.
func (h *Handler) ListDeltas(c *gin.Context) {
	sessionID, _ := playerFromContext(c)
	row, err := h.services.Session.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if row.Status != model.SessionStatusFinished {
		response.Error(c, http.StatusForbidden, "deltas are available after the game ends")
		return
	}

	var since *time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "since must be unix milliseconds")
			return
		}
		t := time.UnixMilli(ms)
		since = &t
	}
	limit, err := parsePositiveIntQuery(c, "limit", 500)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	deltas, err := h.services.Sync.GetDeltas(c.Request.Context(), sessionID, since, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"items": deltas})
}

func (h *Handler) RefereeHistory(c *gin.Context) {
	sessionID, playerID := playerFromContext(c)
	row, err := h.services.Session.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if row.HostID != playerID {
		response.Fail(c, appErr.ErrNotHost)
		return
	}
	minSeverity, err := parsePositiveIntQuery(c, "minSeverity", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.services.Referee.History(c.Request.Context(), sessionID, minSeverity)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"items": items})
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, appErr.Newf(appErr.CodeInvalidArgument, "%s must be a positive integer", key)
	}
	return v, nil
}
