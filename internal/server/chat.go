package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/groundchat/internal/pipeline"
	"github.com/mohammad-safakhou/groundchat/internal/ratelimit"
	"github.com/mohammad-safakhou/groundchat/models"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRetryAfter         = "Retry-After"
)

// ChatRunner runs one chat message. *pipeline.Pipeline satisfies it.
type ChatRunner interface {
	Run(ctx context.Context, clientID string, req pipeline.Request) (pipeline.Response, error)
}

type ChatHandler struct {
	Pipeline ChatRunner
	Logger   *zap.Logger
	Timeout  time.Duration
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

type chatRequest struct {
	Message string                    `json:"message"`
	History []models.ConversationTurn `json:"history"`
}

// chatResponse carries either an answer object or a status string in Message.
type chatResponse struct {
	Message interface{} `json:"message"`
	URL     *string     `json:"url"`
	Error   string      `json:"error,omitempty"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	for _, turn := range req.History {
		if turn.Role != models.RoleUser && turn.Role != models.RoleAssistant {
			return echo.NewHTTPError(http.StatusBadRequest, "history role must be user or assistant")
		}
	}

	ctx := c.Request().Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	clientID := ratelimit.ClientIdentity(c.Request().Header)
	resp, err := h.Pipeline.Run(ctx, clientID, pipeline.Request{Message: req.Message, History: req.History})
	setRateLimitHeaders(c.Response().Header(), resp.Decision)
	if err != nil {
		return h.writeError(c, resp, err)
	}
	return c.JSON(http.StatusOK, chatResponse{Message: resp.Answer, URL: urlOrNull(resp.URL)})
}

func (h *ChatHandler) writeError(c echo.Context, resp pipeline.Response, err error) error {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		pe = &pipeline.Error{Kind: pipeline.InternalFailure, URL: resp.URL, Err: err}
	}

	switch pe.Kind {
	case pipeline.RateLimited:
		return c.JSON(http.StatusTooManyRequests, chatResponse{Message: pe.Kind.String(), Error: errString(pe.Err)})
	case pipeline.ResourceNotFound:
		return c.JSON(http.StatusNotFound, chatResponse{Message: "404", URL: urlOrNull(pe.URL)})
	case pipeline.FetchTransientFailure:
		if h.Logger != nil {
			h.Logger.Warn("page fetch failed", zap.String("url", pe.URL), zap.Error(pe.Err))
		}
		return c.JSON(http.StatusServiceUnavailable, chatResponse{Message: pe.Kind.String(), URL: urlOrNull(pe.URL), Error: "could not fetch the page"})
	case pipeline.GenerationFormatError:
		return c.JSON(http.StatusBadGateway, chatResponse{Message: pe.Kind.String(), URL: urlOrNull(pe.URL), Error: "model returned a malformed answer"})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat request failed", zap.Error(err))
		}
		return c.JSON(http.StatusInternalServerError, chatResponse{Message: pipeline.InternalFailure.String(), URL: urlOrNull(pe.URL), Error: "internal error"})
	}
}

func setRateLimitHeaders(h http.Header, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	h.Set(headerRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(headerRateLimitRemaining, strconv.Itoa(d.Remaining))
	if !d.Allowed {
		h.Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(d.ResetAfter.Seconds()))))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func urlOrNull(u string) *string {
	if u == "" {
		return nil
	}
	return &u
}
