package http

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/edgetalent/smsbot/internal/delivery"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/repository"
)

type takeoverReq struct {
	Enabled bool `json:"enabled"`
}

// takeoverHandler toggles a lead's manual mode. While enabled, the
// lifecycle controller suppresses automated replies and a human agent owns
// the conversation. Toggling never touches the status.
func takeoverHandler(leads repository.LeadsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		}

		var req takeoverReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if err := leads.SetManualMode(c.Request().Context(), id, req.Enabled); err != nil {
			if errors.Is(err, repository.ErrLeadNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "lead not found"})
			}
			log.Errorf("set manual mode failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"lead_id":        id,
			"is_manual_mode": req.Enabled,
		})
	}
}

type manualMessageReq struct {
	Message string `json:"message"`
}

// manualMessageHandler sends a human agent's message to a lead, bypassing
// the lifecycle controller entirely. The lead must be in manual mode: the
// bot and the agent never talk over each other.
func manualMessageHandler(
	leads repository.LeadsRepository,
	msgs repository.MessagesRepository,
	provider delivery.Provider,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		}

		var req manualMessageReq
		if err := c.Bind(&req); err != nil || req.Message == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		lead, err := leads.GetByID(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrLeadNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "lead not found"})
			}
			log.Errorf("load lead failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		if !lead.IsManualMode {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "lead is not in manual mode, enable takeover first",
			})
		}

		sid, err := provider.Send(c.Request().Context(), lead.Phone, req.Message)
		if err != nil {
			log.Errorf("manual send failed lead=%s: %v", lead.LeadCode, err)
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "send failed"})
		}

		if _, err := msgs.Append(c.Request().Context(), lead.ID, model.SenderHuman, req.Message, lead.IsTest); err != nil {
			log.Errorf("persist manual message failed lead=%s: %v", lead.LeadCode, err)
		}
		if err := leads.TouchLastContacted(c.Request().Context(), lead.ID); err != nil {
			log.Errorf("touch last_contacted failed lead=%s: %v", lead.LeadCode, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message_sid": sid,
			"to":          lead.Phone,
			"content":     req.Message,
		})
	}
}

// listLeadsHandler powers the dashboard sidebar.
func listLeadsHandler(leads repository.LeadsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageParams(c, 50, 1000)

		rows, err := leads.List(c.Request().Context(), limit, offset)
		if err != nil {
			log.Errorf("list leads failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		out := make([]map[string]any, 0, len(rows))
		for i := range rows {
			l := &rows[i]
			out = append(out, map[string]any{
				"id":                l.ID,
				"phone":             l.Phone,
				"lead_code":         l.LeadCode,
				"name":              l.DisplayName(),
				"status":            l.Status,
				"is_manual_mode":    l.IsManualMode,
				"is_test":           l.IsTest,
				"follow_up_count":   l.FollowUpCount,
				"last_contacted_at": nullTime(l),
				"created_at":        l.CreatedAt,
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(out),
			"results": out,
		})
	}
}

// leadMessagesHandler returns a lead's conversation, oldest first.
func leadMessagesHandler(leads repository.LeadsRepository, msgs repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		}

		if _, err := leads.GetByID(c.Request().Context(), id); err != nil {
			if errors.Is(err, repository.ErrLeadNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "lead not found"})
			}
			log.Errorf("load lead failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		limit, _ := pageParams(c, 50, 500)
		rows, err := msgs.Recent(c.Request().Context(), id, limit)
		if err != nil {
			log.Errorf("list messages failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

func pageParams(c echo.Context, def, max int) (limit, offset int) {
	limit = def
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func nullTime(l *model.Lead) any {
	if l.LastContactedAt.Valid {
		return l.LastContactedAt.Time
	}
	return nil
}
