// Package api exposes the GPIO manager over HTTP, grounded on
// EdgxCloud-EdgeFlow/internal/api/routes.go's fiber group-and-handler
// layout, with the route table and per-route method enforcement following
// original_source/src/routes.rs's api_scope.
package api

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmgr/gmgr/internal/gpio"
)

// Server wires a *gpio.Manager into a fiber.App under basePath.
type Server struct {
	manager  *gpio.Manager
	logger   *zap.Logger
	basePath string
}

func NewServer(manager *gpio.Manager, logger *zap.Logger, basePath string) *Server {
	if basePath == "" {
		basePath = "/"
	}
	return &Server{manager: manager, logger: logger, basePath: basePath}
}

var allHTTPMethods = []string{
	fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete,
	fiber.MethodPatch, fiber.MethodHead, fiber.MethodOptions,
}

// resource registers handlers only for the given methods on path, and an
// explicit 405 for every other HTTP method — mirroring
// routes.rs's guard_not_methods rather than letting fiber's router fall
// through to a bare 404 for, say, DELETE on /gpios.
func resource(app fiber.Router, path string, handlers map[string]fiber.Handler) {
	for method, handler := range handlers {
		app.Add(method, path, handler)
	}
	for _, method := range allHTTPMethods {
		if _, ok := handlers[method]; !ok {
			app.Add(method, path, methodNotAllowed)
		}
	}
}

func methodNotAllowed(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusMethodNotAllowed)
}

// Mount registers every GPIO management route onto app.
func (s *Server) Mount(app *fiber.App) {
	group := app.Group(s.basePath)

	resource(group, "/gpios", map[string]fiber.Handler{
		fiber.MethodGet: s.listGpios,
	})

	resource(group, "/gpios/events", map[string]fiber.Handler{
		fiber.MethodGet: websocket.New(s.eventsWebSocket),
	})

	resource(group, "/gpio/:pinId", map[string]fiber.Handler{
		fiber.MethodGet: s.pinDescriptor,
	})
	resource(group, "/gpio/:pinId/info", map[string]fiber.Handler{
		fiber.MethodGet: s.pinInfo,
	})
	resource(group, "/gpio/:pinId/settings", map[string]fiber.Handler{
		fiber.MethodGet:  s.getSettings,
		fiber.MethodPost: s.setSettings,
	})
	resource(group, "/gpio/:pinId/value", map[string]fiber.Handler{
		fiber.MethodGet:  s.getValue,
		fiber.MethodPost: s.setValue,
	})
	resource(group, "/gpio/:pinId/event", map[string]fiber.Handler{
		fiber.MethodGet: s.getLastEvent,
	})
	resource(group, "/gpio/:pinId/events", map[string]fiber.Handler{
		fiber.MethodGet: s.getEvents,
	})
}

func parsePinID(c *fiber.Ctx) (gpio.PinId, error) {
	raw := c.Params("pinId")
	if raw == "" {
		return 0, gpio.InvalidValue("missing pin id")
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, gpio.InvalidValue("invalid pin id %q", raw)
	}
	return gpio.PinId(v), nil
}

func (s *Server) listGpios(c *fiber.Ctx) error {
	return c.JSON(s.manager.ListPins())
}

func (s *Server) pinDescriptor(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}
	desc, err := s.manager.GetPinDescriptor(pinID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(desc)
}

func (s *Server) pinInfo(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}
	info, err := s.manager.GetPinInfo(pinID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}
	settings, err := s.manager.GetPinSettings(pinID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(settings)
}

// settingsPayload allows a partial merge against the pin's current settings,
// mirroring routes.rs's SettingsPayload — a POST naming only "edge" leaves
// state and debounce_ms untouched.
type settingsPayload struct {
	State      *gpio.GpioState  `json:"state"`
	Edge       *gpio.EdgeDetect `json:"edge"`
	DebounceMs *uint64          `json:"debounce_ms"`
}

func (s *Server) setSettings(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}

	current, err := s.manager.GetPinSettings(pinID)
	if err != nil {
		return respondError(c, err)
	}

	body := c.Body()
	if len(body) == 0 {
		return respondError(c, gpio.InvalidValue("empty settings payload"))
	}

	var payload settingsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return respondError(c, gpio.InvalidValue("invalid settings payload: %v", err))
	}

	merged := current
	if payload.State != nil {
		merged.State = *payload.State
	}
	if payload.Edge != nil {
		merged.Edge = *payload.Edge
	}
	if payload.DebounceMs != nil {
		merged.DebounceMs = *payload.DebounceMs
	}

	if err := s.manager.SetPinSettings(pinID, merged); err != nil {
		return respondError(c, err)
	}
	return c.JSON(merged)
}

func (s *Server) getValue(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}
	v, err := s.manager.ReadValue(pinID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(v)
}

func (s *Server) setValue(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}

	value, err := parseValuePayload(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	if err := s.manager.WriteValue(pinID, value); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func parseValuePayload(body []byte) (uint8, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return 0, gpio.InvalidValue("empty value payload")
	}
	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, gpio.InvalidValue("value must be an integer")
	}
	return uint8(v), nil
}

func (s *Server) getLastEvent(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}
	ev, err := s.manager.GetLastEvent(pinID)
	if err != nil {
		return respondError(c, err)
	}
	if ev == nil {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.JSON(ev)
}

func (s *Server) getEvents(c *fiber.Ctx) error {
	pinID, err := parsePinID(c)
	if err != nil {
		return respondError(c, err)
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return respondError(c, gpio.InvalidValue("invalid limit %q", raw))
		}
		limit = v
	}

	events, err := s.manager.GetEvents(pinID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// eventsWebSocket streams every edge event on the bus to the client as JSON
// text frames, with no per-pin filter (a client filters client-side). A lag
// notice is sent as a JSON error frame, matching respondError's shape.
func (s *Server) eventsWebSocket(c *websocket.Conn) {
	sub := s.manager.SubscribeEvents()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if lag := sub.TakeLag(); lag > 0 {
				if err := c.WriteJSON(fiber.Map{
					"error":  "event stream lagged",
					"lagged": lag,
				}); err != nil {
					return
				}
			}
			if err := c.WriteJSON(event); err != nil {
				if s.logger != nil {
					s.logger.Warn("websocket client disconnected", zap.Error(err))
				}
				return
			}
		case <-done:
			return
		}
	}
}
