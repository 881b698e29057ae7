package calllog

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/apiclient"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// Client persists the end-of-call summary.
type Client struct {
	api *apiclient.Client
	log *logger.Logger
}

func New(cfg config.Config, log *logger.Logger) *Client {
	log = log.Component("calllog")
	return &Client{api: apiclient.New(cfg, log), log: log}
}

// Log writes one call log record. Failures are logged and reported as false;
// the call is over by then so nothing else depends on the outcome.
func (c *Client) Log(ctx context.Context, rec types.CreateCallLog) bool {
	log := c.log.WithFields(logrus.Fields{
		"caller_phone":  rec.CallerPhone,
		"call_duration": rec.CallDuration,
		"escalated":     rec.Escalated,
	})
	if err := c.api.DoJSON(ctx, http.MethodPost, "/call-logs", nil, rec, nil); err != nil {
		log.WithError(err).Error("error logging call")
		return false
	}
	log.Info("call logged")
	return true
}

func (c *Client) Close() error {
	return c.api.Close()
}
