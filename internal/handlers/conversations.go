package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/chat"
	"github.com/opsdesk/opsdesk/internal/models"
)

func ListConversations(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := svc.ListConversations(auth.UserID(r))
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

// CreateConversation starts a direct or group conversation. Direct creation
// is idempotent: an existing conversation for the pair is returned instead
// of a duplicate.
func CreateConversation(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type         string   `json:"type"`
			UserID       string   `json:"user_id"`
			Name         string   `json:"name"`
			Participants []string `json:"participants"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}

		var (
			conv *models.Conversation
			err  error
		)
		switch req.Type {
		case models.ConversationDirect:
			conv, err = svc.CreateDirect(auth.UserID(r), req.UserID)
		case models.ConversationGroup:
			conv, err = svc.CreateGroup(auth.UserID(r), req.Name, req.Participants)
		default:
			err = apperr.Validation("type must be direct or group")
		}
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func GetMessages(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		messages, err := svc.Messages(auth.UserID(r), mux.Vars(r)["id"], limit, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func SendMessage(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content     string          `json:"content"`
			MessageType string          `json:"message_type"`
			Metadata    json.RawMessage `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		msg, err := svc.Send(mux.Vars(r)["id"], auth.UserID(r), req.Content, req.MessageType, req.Metadata)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// AddParticipant adds a user to a group conversation. Only existing
// participants may add members.
func AddParticipant(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		if err := svc.AddMember(mux.Vars(r)["id"], auth.UserID(r), req.UserID); err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
	}
}

// LeaveConversation removes the caller from a conversation.
func LeaveConversation(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Leave(mux.Vars(r)["id"], auth.UserID(r)); err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
	}
}

func MarkConversationRead(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.MarkRead(mux.Vars(r)["id"], auth.UserID(r), auth.Username(r)); err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}
