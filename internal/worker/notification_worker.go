package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to ticket
// events. A nil service leaves notifications disabled.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService == nil {
		logger.Info("ticket notifications disabled")
		return false
	}
	notificationService.RegisterHandlers()
	logger.Info("ticket notifications registered")
	return true
}
