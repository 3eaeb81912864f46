package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/edgetalent/smsbot/internal/repository"
	"github.com/edgetalent/smsbot/internal/util"
)

// conversationsReportHandler serves the archived turn log out of ClickHouse,
// newest first, optionally filtered by phone.
func conversationsReportHandler(events repository.EventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if events == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "analytics store not configured"})
		}

		phone := c.QueryParam("phone")
		if phone != "" {
			phone = util.NormalizePhone(phone)
		}
		limit, offset := pageParams(c, 50, 1000)

		rows, err := events.ListByPhone(c.Request().Context(), phone, limit, offset)
		if err != nil {
			log.Errorf("list conversation events failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "analytics query failed"})
		}

		out := make([]map[string]any, 0, len(rows))
		for _, ev := range rows {
			out = append(out, map[string]any{
				"ts":             ev.Timestamp,
				"lead_code":      ev.LeadCode,
				"phone":          ev.Phone,
				"direction":      ev.Direction,
				"status_from":    ev.StatusFrom,
				"status_to":      ev.StatusTo,
				"intent":         ev.Intent,
				"objection_type": ev.ObjectionType,
				"sentiment":      ev.Sentiment,
				"chars":          ev.Chars,
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
