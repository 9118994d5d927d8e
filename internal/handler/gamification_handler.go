package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/levelup-api/internal/middleware"
	"github.com/noah-isme/levelup-api/internal/service"
	"github.com/noah-isme/levelup-api/internal/utils"
)

const streamPingInterval = 30 * time.Second

// GamificationHandler exposes progress, rewards, ranking and the reward stream.
type GamificationHandler struct {
	service  service.GamificationService
	notifier service.RewardNotifier
	logger   zerolog.Logger
}

// NewGamificationHandler constructs the handler. notifier may be nil, which disables the stream.
func NewGamificationHandler(service service.GamificationService, notifier service.RewardNotifier, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{
		service:  service,
		notifier: notifier,
		logger:   logger.With().Str("component", "gamification_handler").Logger(),
	}
}

// Register attaches gamification routes to the router group.
func (h *GamificationHandler) Register(router fiber.Router) {
	router.Get("/profile", h.profile)
	router.Get("/rewards", h.rewards)
	router.Get("/ranking", h.ranking)
	router.Get("/ranks", h.ranks)
	router.Get("/notifications", h.notifications)

	if h.notifier == nil {
		return
	}
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.stream))
}

func (h *GamificationHandler) profile(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "gamification profile", summary)
}

func (h *GamificationHandler) rewards(c *fiber.Ctx) error {
	resp, err := h.service.Rewards(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "rewards retrieved", resp)
}

func (h *GamificationHandler) ranking(c *fiber.Ctx) error {
	resp, err := h.service.Ranking(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "ranking retrieved", resp)
}

func (h *GamificationHandler) ranks(c *fiber.Ctx) error {
	resp, err := h.service.Ranks(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "ranks retrieved", resp)
}

func (h *GamificationHandler) notifications(c *fiber.Ctx) error {
	resp, err := h.service.Notifications(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "notifications retrieved", resp)
}

// stream pushes reward events for the connected user until either side closes.
func (h *GamificationHandler) stream(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(uint)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	events, cancel := h.notifier.Subscribe(userID)
	defer cancel()

	h.logger.Info().Uint("user_id", userID).Msg("reward stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Info().Uint("user_id", userID).Msg("reward stream disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to push reward event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *GamificationHandler) handleError(c *fiber.Ctx, err error) error {
	if resp, ok := respondServiceError(c, err); ok {
		return resp
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("gamification request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
