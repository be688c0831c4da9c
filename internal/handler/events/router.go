package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/webitel/shardscope/internal/domain/event"
	"github.com/webitel/shardscope/internal/domain/registry"
)

const handlerName = "ON_FLEET_SNAPSHOT"

// SnapshotHandler relays fleet snapshots from the bus to local watchers.
type SnapshotHandler struct {
	hub    registry.Hubber
	logger *slog.Logger
}

func NewSnapshotHandler(hub registry.Hubber, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{hub: hub, logger: logger.With("component", "snapshot_handler")}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, logger)
}

// Handle never returns an error: a snapshot that cannot be decoded would
// fail the same way on every redelivery.
func (h *SnapshotHandler) Handle(msg *message.Message) (err error) {
	// [PANIC_RECOVERY]
	// Safely handle runtime panics to keep the consumer alive.
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("PANIC_RECOVERED",
				"err", r,
				"stack", string(debug.Stack()),
				"msg_id", msg.UUID)
			err = nil
		}
	}()

	// [DECODING]
	var snap event.FleetSnapshotV1
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
		return nil
	}
	if snap.Kind != event.FleetSnapshot {
		h.logger.Warn("UNEXPECTED_EVENT_KIND", "kind", snap.Kind, "msg_id", msg.UUID)
		return nil
	}

	// [FAN_OUT_DISPATCH]
	delivered := h.hub.Broadcast(msg.Payload)
	h.logger.Debug("SNAPSHOT_RELAYED",
		"event_id", snap.ID,
		"trace_id", TraceIDFrom(msg.Context()),
		"watchers", delivered,
	)
	return nil
}

// [REGISTRATION_PIPELINE]
func (h *SnapshotHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, topic string) error {
	if topic == "" {
		return fmt.Errorf("SNAPSHOT_PIPELINE: empty topic")
	}

	router.AddConsumerHandler(handlerName, topic, sub, h.Handle).AddMiddleware(
		middleware.Recoverer,
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
		middleware.Timeout(10*time.Second),
	)

	h.logger.Info("SNAPSHOT_PIPELINE_READY", "topic", topic)
	return nil
}
