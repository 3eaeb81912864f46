package http

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/edgetalent/smsbot/internal/lifecycle"
	"github.com/edgetalent/smsbot/internal/model"
	"github.com/edgetalent/smsbot/internal/persona"
	"github.com/edgetalent/smsbot/internal/repository"
	"github.com/edgetalent/smsbot/internal/util"
)

// TurnRunner is the slice of the lifecycle controller the sandbox needs: a
// full turn against an already-loaded lead.
type TurnRunner interface {
	HandleTurn(ctx context.Context, lead *model.Lead, text string, isTest bool) (*lifecycle.TurnResult, error)
}

type createSandboxLeadReq struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// createSandboxLeadHandler mints a test lead with a synthetic phone number
// and opens the conversation with the compliant first-touch message, the
// same way a real outreach would. Test leads run the real funnel but never
// reach the delivery provider or the follow-up engine.
func createSandboxLeadHandler(leads repository.LeadsRepository, msgs repository.MessagesRepository, studioName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createSandboxLeadReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		phone := util.NormalizePhone(req.Phone)
		if phone == "" {
			phone = util.NewSandboxPhone()
		}

		lead, err := leads.CreateTest(c.Request().Context(), phone, req.Name)
		if err != nil {
			log.Errorf("create sandbox lead failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		opening := persona.ComplianceMessage(studioName, lead.DisplayName())
		if _, err := msgs.Append(c.Request().Context(), lead.ID, model.SenderBot, opening, true); err != nil {
			log.Errorf("persist sandbox opening failed lead=%s: %v", lead.LeadCode, err)
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":        lead.ID,
			"phone":     lead.Phone,
			"lead_code": lead.LeadCode,
			"name":      lead.DisplayName(),
			"status":    lead.Status,
			"is_test":   lead.IsTest,
			"opening":   opening,
		})
	}
}

type sandboxChatReq struct {
	LeadID          int64  `json:"lead_id"`
	Message         string `json:"message"`
	SimulateLatency bool   `json:"simulate_latency"`
}

// sandboxChatHandler runs one conversation turn against a test lead and
// returns the bot's reply directly, with an optional simulated typing delay
// so the dashboard chat feels like a person.
func sandboxChatHandler(leads repository.LeadsRepository, runner TurnRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sandboxChatReq
		if err := c.Bind(&req); err != nil || req.LeadID == 0 || req.Message == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		lead, err := leads.GetByID(c.Request().Context(), req.LeadID)
		if err != nil {
			if err == repository.ErrLeadNotFound {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "lead not found"})
			}
			log.Errorf("load sandbox lead failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !lead.IsTest {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "lead " + strconv.FormatInt(lead.ID, 10) + " is not a sandbox lead"})
		}

		var thinking time.Duration
		if req.SimulateLatency {
			thinking = time.Duration(1000+rand.Intn(2000)) * time.Millisecond
			select {
			case <-time.After(thinking):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		res, err := runner.HandleTurn(c.Request().Context(), lead, req.Message, true)
		if err != nil {
			log.Errorf("sandbox turn failed lead=%s: %v", lead.LeadCode, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "turn failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"reply":   res.Reply,
			"replied": res.Replied,
			"status":  res.NewStatus,
			"analysis": map[string]any{
				"intent":         res.Analysis.Intent,
				"objection_type": res.Analysis.ObjectionType,
				"sentiment":      res.Analysis.Sentiment,
			},
			"thinking_time_ms": thinking.Milliseconds(),
		})
	}
}
