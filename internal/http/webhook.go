package http

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/edgetalent/smsbot/internal/lifecycle"
	"github.com/edgetalent/smsbot/internal/metrics"
	"github.com/edgetalent/smsbot/internal/persona"
	"github.com/edgetalent/smsbot/internal/repository"
	"github.com/edgetalent/smsbot/internal/util"
)

// InboundHandler is the slice of the lifecycle controller the webhook needs.
type InboundHandler interface {
	HandleInbound(ctx context.Context, phone, text string) (*lifecycle.TurnResult, error)
}

const (
	sidDedupeTTL   = 24 * time.Hour
	maxInboundLen  = 1600 // provider-side concatenated SMS ceiling
	contentTypeXML = "application/xml"
)

// webhookHandler receives the delivery provider's inbound-SMS callback and
// answers with TwiML. The provider retries on timeouts, so MessageSid is
// deduped in redis before the turn runs.
func webhookHandler(ctrl InboundHandler, events repository.EventsRepository, rds *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		from := util.NormalizePhone(c.FormValue("From"))
		body := strings.TrimSpace(c.FormValue("Body"))
		sid := strings.TrimSpace(c.FormValue("MessageSid"))

		if from == "" || body == "" {
			return c.String(http.StatusBadRequest, "bad request")
		}
		if utf8.RuneCountInString(body) > maxInboundLen {
			body = string([]rune(body)[:maxInboundLen])
		}

		if sid != "" && rds != nil {
			ok, err := rds.SetNX(c.Request().Context(), "sid:"+sid, 1, sidDedupeTTL).Result()
			if err == nil && !ok {
				// provider retry of a turn we already handled
				log.Infof("duplicate webhook sid=%s", sid)
				return c.Blob(http.StatusOK, contentTypeXML, []byte(renderTwiML("")))
			}
		}

		res, err := ctrl.HandleInbound(c.Request().Context(), from, body)
		if err != nil {
			log.Errorf("webhook turn failed from=%s: %v", from, err)
			metrics.TurnsTotal.WithLabelValues("error").Inc()
			return c.Blob(http.StatusOK, contentTypeXML,
				[]byte(renderTwiML(persona.TechnicalDifficultiesReply)))
		}

		archiveTurn(c.Request().Context(), events, res, body)

		reply := ""
		if res.Replied {
			reply = res.Reply
		}
		return c.Blob(http.StatusOK, contentTypeXML, []byte(renderTwiML(reply)))
	}
}

// archiveTurn writes the turn to the ClickHouse analytics log. Best effort:
// the reply has already been decided, a lost event costs nothing.
func archiveTurn(ctx context.Context, events repository.EventsRepository, res *lifecycle.TurnResult, inbound string) {
	if events == nil || res == nil || res.Lead == nil {
		return
	}

	now := time.Now()
	ev := repository.TurnEvent{
		Timestamp:     now,
		LeadCode:      res.Lead.LeadCode,
		Phone:         res.Lead.Phone,
		Direction:     "inbound",
		StatusFrom:    res.OldStatus.String(),
		StatusTo:      res.NewStatus.String(),
		Intent:        res.Analysis.Intent,
		ObjectionType: res.Analysis.ObjectionType,
		Sentiment:     res.Analysis.Sentiment,
		Chars:         uint32(utf8.RuneCountInString(inbound)),
	}
	if err := events.Insert(ctx, ev); err != nil {
		log.Warnf("archive inbound turn failed: %v", err)
		return
	}

	if res.Replied {
		out := ev
		out.Direction = "outbound"
		out.Chars = uint32(utf8.RuneCountInString(res.Reply))
		if err := events.Insert(ctx, out); err != nil {
			log.Warnf("archive outbound turn failed: %v", err)
		}
	}
}
