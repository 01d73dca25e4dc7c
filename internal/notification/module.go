package notification

import (
	"context"

	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	notifhandler "marketplace_backend/internal/notification/handler"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/internal/notification/sse"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module wires the dispatcher, the inbox API and the realtime stream.
type Module struct {
	log        *logger.Logger
	sse        *sse.Service
	channels   Multi
	dispatcher *Dispatcher
	inbox      *inapp.Service
	handler    *notifhandler.HTTPHandler
}

// New creates the notification module. The SSE channel is always enabled.
func New(store inapp.Store, queue outbox.Store, catalog Catalog, cfg config.NotificationConfig, log *logger.Logger) *Module {
	m := &Module{
		log: log,
		sse: sse.New(log),
	}
	m.channels = Multi{NewSSEDelivery(m.sse)}

	renderer := NewRenderer(catalog, cfg.GetAppBaseURL())
	m.dispatcher = NewDispatcher(store, queue, DeliveryFunc(m.deliver), renderer, log)
	m.inbox = inapp.NewService(store)
	m.handler = notifhandler.NewHTTPHandler(m.inbox)
	return m
}

// EnableEmail adds the email channel. Call before the dispatcher is used.
func (m *Module) EnableEmail(sender email.Sender, resolver EmailResolver) {
	m.channels = append(m.channels, NewEmailDelivery(sender, resolver))
	m.log.Info("notification email channel enabled")
}

func (m *Module) deliver(ctx context.Context, n inapp.Notification) error {
	return m.channels.Deliver(ctx, n)
}

// Name returns the module name.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the inbox API and the event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	notifications.GET("/stream", m.sse.Handler(streamUserID))
	m.handler.RegisterRoutes(notifications)
}

// Dispatcher returns the notification dispatcher.
func (m *Module) Dispatcher() *Dispatcher { return m.dispatcher }

// SSE returns the realtime channel.
func (m *Module) SSE() *sse.Service { return m.sse }

// RegisterHandlers subscribes to lifecycle events so open dashboards refresh
// after each committed transition.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range events.LifecycleEventNames {
		bus.Subscribe(name, m)
	}
	m.log.Info("notification module registered event handlers")
}

// Handle pushes a lifecycle update to every party of the event.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	pe, ok := event.(events.PartyEvent)
	if !ok {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	for _, userID := range pe.Parties() {
		if userID == uuid.Nil || seen[userID] {
			continue
		}
		seen[userID] = true
		m.sse.Publish(userID, sse.Event{Type: sse.EventLifecycle, Message: event.EventName(), Data: event})
	}
	return nil
}

func streamUserID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}
