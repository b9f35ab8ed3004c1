package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"chatline/internal/app/fault"
	chatsvc "chatline/internal/app/services/chat"
	domainchat "chatline/internal/domain/chat"
	domainuser "chatline/internal/domain/user"
)

// ChatHandler bridges HTTP with the chat service. Authorization beyond
// "who is calling" lives in the service; the handler only supplies the
// authenticated requester id.
type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

// AccessDirectChat finds or creates the one-to-one chat with the given user.
func (h ChatHandler) AccessDirectChat(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	view, err := h.Service.FindOrCreateDirect(c.Request.Context(), domainuser.ID(p.ID), domainuser.ID(strings.TrimSpace(req.UserID)))
	if err != nil {
		h.respondChatError(c, err, "access direct chat", "user_id", p.ID, "peer_id", req.UserID)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h ChatHandler) ListChats(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	list, err := h.Service.ListChats(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondChatError(c, err, "list chats", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h ChatHandler) CreateGroup(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participants must be an array"})
		return
	}
	participants := make([]domainuser.ID, 0, len(req.Participants))
	for _, id := range req.Participants {
		participants = append(participants, domainuser.ID(strings.TrimSpace(id)))
	}
	view, err := h.Service.CreateGroup(c.Request.Context(), chatsvc.CreateGroupParams{
		Name:         req.Name,
		Participants: participants,
		Creator:      domainuser.ID(p.ID),
	})
	if err != nil {
		h.respondChatError(c, err, "create group", "user_id", p.ID, "name", req.Name)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h ChatHandler) RenameGroup(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	groupID := strings.TrimSpace(c.Param("id"))
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group id is required"})
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	view, err := h.Service.RenameGroup(c.Request.Context(), domainchat.ID(groupID), req.Name)
	if err != nil {
		h.respondChatError(c, err, "rename group", "user_id", p.ID, "group_id", groupID)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h ChatHandler) AddMember(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	groupID, memberID, ok := groupMemberParams(c)
	if !ok {
		return
	}
	view, err := h.Service.AddMember(c.Request.Context(), domainchat.ID(groupID), domainuser.ID(memberID))
	if err != nil {
		h.respondChatError(c, err, "add member", "user_id", p.ID, "group_id", groupID, "member_id", memberID)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h ChatHandler) RemoveMember(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	groupID, memberID, ok := groupMemberParams(c)
	if !ok {
		return
	}
	view, err := h.Service.RemoveMember(c.Request.Context(), domainchat.ID(groupID), domainuser.ID(memberID))
	if err != nil {
		h.respondChatError(c, err, "remove member", "user_id", p.ID, "group_id", groupID, "member_id", memberID)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h ChatHandler) LeaveGroup(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	groupID := strings.TrimSpace(c.Param("id"))
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group id is required"})
		return
	}
	view, err := h.Service.LeaveGroup(c.Request.Context(), domainchat.ID(groupID), domainuser.ID(p.ID))
	if err != nil {
		h.respondChatError(c, err, "leave group", "user_id", p.ID, "group_id", groupID)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h ChatHandler) DeleteGroup(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	groupID := strings.TrimSpace(c.Param("id"))
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group id is required"})
		return
	}
	if err := h.Service.DeleteGroup(c.Request.Context(), domainchat.ID(groupID)); err != nil {
		h.respondChatError(c, err, "delete group", "user_id", p.ID, "group_id", groupID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group deleted"})
}

func groupMemberParams(c *gin.Context) (string, string, bool) {
	groupID := strings.TrimSpace(c.Param("id"))
	memberID := strings.TrimSpace(c.Param("memberId"))
	if groupID == "" || memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group id and member id are required"})
		return "", "", false
	}
	return groupID, memberID, true
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	kind := fault.KindOf(err)
	if kind == fault.Unavailable && h.Logger != nil {
		h.Logger.Error("chat operation failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch kind {
	case fault.InvalidRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": faultMessage(err)})
	case fault.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": faultMessage(err)})
	case fault.Forbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": faultMessage(err)})
	case fault.DuplicateName:
		c.JSON(http.StatusConflict, gin.H{"error": faultMessage(err)})
	case fault.InvalidOperation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": faultMessage(err)})
	case fault.Conflict:
		c.JSON(http.StatusConflict, gin.H{"error": faultMessage(err)})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
	}
}

func faultMessage(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return "request failed"
}

var _ ChatHTTP = (*ChatHandler)(nil)
