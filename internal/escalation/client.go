package escalation

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/apiclient"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// Client files help requests for a human supervisor. It makes exactly one
// attempt per call: repeating Escalate creates another help request.
type Client struct {
	api *apiclient.Client
	log *logger.Logger
}

func New(cfg config.Config, log *logger.Logger) *Client {
	log = log.Component("escalation")
	return &Client{api: apiclient.New(cfg, log), log: log}
}

// Escalate returns the id the help desk assigned to the new request, or
// ok=false when the request could not be created.
func (c *Client) Escalate(ctx context.Context, req types.CreateHelpRequest) (requestID string, ok bool) {
	log := c.log.WithFields(logrus.Fields{
		"caller_phone": req.CallerPhone,
		"question":     req.Question,
	})

	var resp types.CreateHelpRequestResponse
	err := c.api.DoJSON(ctx, http.MethodPost, "/help-requests", nil, req, &resp)
	if err == nil && resp.Request.ID == "" {
		err = errors.New("help request response without id")
	}
	if err != nil {
		log.WithError(err).Error("error creating help request")
		return "", false
	}

	log.WithField("help_request_id", resp.Request.ID).Info("help request created")
	return resp.Request.ID, true
}

func (c *Client) Close() error {
	return c.api.Close()
}
