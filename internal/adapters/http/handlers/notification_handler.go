package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"microfin-loans/internal/core/services"
	"microfin-loans/internal/pkg/pagination"
	"microfin-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// NotificationHandler handles the borrower inbox and its live stream
type NotificationHandler struct {
	notificationService *services.NotificationService
	heartbeat           time.Duration
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		heartbeat:           30 * time.Second,
	}
}

// List lists notifications
// @Summary List notifications
// @Description Borrowers read their own inbox; officers pass borrower_id
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param borrower_id query int false "Borrower ID (officers)"
// @Param unread query bool false "Only unread"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	borrowerID, ok := scopedBorrowerID(c)
	if !ok {
		return response.BadRequest(c, "Borrower is required")
	}
	params := pagination.GetParams(c)

	items, total, err := h.notificationService.List(c.Context(), borrowerID, c.QueryBool("unread"), params.Offset, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list notifications")
	}

	return response.Success(c, "Notifications retrieved successfully",
		pagination.NewResponse(items, params, total))
}

// UnreadCount returns the badge count
// @Summary Unread count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param borrower_id query int false "Borrower ID (officers)"
// @Success 200 {object} response.Response
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	borrowerID, ok := scopedBorrowerID(c)
	if !ok {
		return response.BadRequest(c, "Borrower is required")
	}

	count, err := h.notificationService.UnreadCount(c.Context(), borrowerID)
	if err != nil {
		return handleError(c, err, "Failed to count notifications")
	}

	return response.Success(c, "Unread count retrieved", fiber.Map{
		"unread": count,
	})
}

// MarkRead marks one notification read
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid notification ID")
	}

	// officers may mark any notification; borrowers only their own
	var owner uint
	if !isOfficer(c) {
		borrowerID, ok := tokenBorrowerID(c)
		if !ok {
			return response.Forbidden(c, "Borrower account required")
		}
		owner = borrowerID
	}

	n, err := h.notificationService.MarkRead(c.Context(), id, owner)
	if err != nil {
		return handleError(c, err, "Failed to mark notification")
	}

	return response.Success(c, "Notification marked as read", fiber.Map{
		"notification": n,
	})
}

// MarkAllRead marks the whole inbox read
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param borrower_id query int false "Borrower ID (officers)"
// @Success 200 {object} response.Response
// @Router /notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	borrowerID, ok := scopedBorrowerID(c)
	if !ok {
		return response.BadRequest(c, "Borrower is required")
	}

	updated, err := h.notificationService.MarkAllRead(c.Context(), borrowerID)
	if err != nil {
		return handleError(c, err, "Failed to mark notifications")
	}

	return response.Success(c, "Notifications marked as read", fiber.Map{
		"updated": updated,
	})
}

// Stream pushes new notifications and unread counts as server-sent events
// @Summary Notification stream
// @Description Server-sent events: notification, unread_count
// @Tags Notifications
// @Produce text/event-stream
// @Security BearerAuth
// @Param borrower_id query int false "Borrower ID (officers)"
// @Success 200 {string} string "event stream"
// @Router /notifications/stream [get]
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	borrowerID, ok := scopedBorrowerID(c)
	if !ok {
		return response.BadRequest(c, "Borrower is required")
	}

	clientID := fmt.Sprintf("b%d-%s", borrowerID, uuid.NewString()[:8])
	hub := h.notificationService.Hub
	heartbeatEvery := h.heartbeat

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		client := services.NewSSEClient(clientID, borrowerID)
		hub.Register(client)
		defer hub.Unregister(clientID)

		fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q,\"borrower_id\":%d}\n\n", clientID, borrowerID)
		if err := w.Flush(); err != nil {
			return
		}

		heartbeat := time.NewTicker(heartbeatEvery)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-client.Channel:
				if !ok {
					return
				}
				if err := writeSSEEvent(w, event); err != nil {
					log.Printf("📡 SSE client disconnected: %s", clientID)
					return
				}

			case <-heartbeat.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					log.Printf("📡 SSE client disconnected: %s", clientID)
					return
				}
			}
		}
	})

	return nil
}

// writeSSEEvent writes one event frame and flushes it
func writeSSEEvent(w *bufio.Writer, event services.SSEEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
	return w.Flush()
}
