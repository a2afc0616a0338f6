package clients

import (
	"context"
	"fmt"

	"school-admin/internal/browser"
	ws "school-admin/internal/transport/websocket"
)

// WebSocketClient pushes notifications to an admin's open sockets.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) send(userID int64, msgType, channel string, data map[string]any) {
	if c == nil || c.hub == nil {
		return
	}
	c.hub.Broadcast(userID, &ws.Message{
		Type:    msgType,
		Channel: fmt.Sprintf("%s#%d", channel, userID),
		Data:    data,
	})
}

// NotifyToast shows a transient message in the admin's console.
func (c *WebSocketClient) NotifyToast(_ context.Context, userID int64, level browser.Level, message string) error {
	c.send(userID, "toast", "notify_user_toast", map[string]any{
		"level":   level,
		"message": message,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(_ context.Context, userID int64, exportID string, progress float64, stage string) error {
	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	c.send(userID, "export_progress", "notify_user_of_progress_export", data)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(_ context.Context, userID int64, exportID, url, filename string) error {
	c.send(userID, "export_complete", "notify_user_when_export_complete", map[string]any{
		"id":       exportID,
		"url":      url,
		"filename": filename,
		"user_id":  userID,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(_ context.Context, userID int64, exportID, errMsg string) error {
	c.send(userID, "export_failed", "notify_user_when_export_failed", map[string]any{
		"id":      exportID,
		"message": errMsg,
		"user_id": userID,
	})
	return nil
}

// ToastNotifier delivers browser notifications of one admin as toasts.
type ToastNotifier struct {
	Client *WebSocketClient
	UserID int64
	Prefix string
}

func (n ToastNotifier) Notify(ctx context.Context, level browser.Level, message string) {
	browser.LogNotifier{Prefix: n.Prefix}.Notify(ctx, level, message)
	_ = n.Client.NotifyToast(ctx, n.UserID, level, message)
}
