package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/apiclient"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// maxSearchRetry caps how long a lookup keeps retrying while the caller waits.
const maxSearchRetry = 5 * time.Second

// Client looks up answers in the remote knowledge base.
type Client struct {
	api   *apiclient.Client
	log   *logger.Logger
	usage sync.WaitGroup
}

func New(cfg config.Config, log *logger.Logger) *Client {
	log = log.Component("knowledge")
	return &Client{api: apiclient.New(cfg, log), log: log}
}

// Search returns the answer of the best-ranked entry for question. found is
// false when nothing matches or the knowledge service cannot be reached.
func (c *Client) Search(ctx context.Context, question string) (answer string, found bool) {
	entry, err := c.lookup(ctx, question)
	if err != nil {
		c.log.WithError(err).WithField("question", question).Error("error searching knowledge base")
		return "", false
	}
	if entry == nil {
		c.log.WithField("question", question).Info("no knowledge entry matched")
		return "", false
	}

	c.log.WithFields(logrus.Fields{
		"entry_id":       entry.ID,
		"entry_question": entry.Question,
	}).Info("found answer in knowledge base")
	c.recordUsage(entry.ID)
	return entry.Answer, true
}

func (c *Client) lookup(ctx context.Context, question string) (*types.KnowledgeEntry, error) {
	budget := c.api.Timeout
	if budget > maxSearchRetry {
		budget = maxSearchRetry
	}
	var resp types.KnowledgeSearchResponse
	err := apiclient.Retry(ctx, budget, func() error {
		resp = types.KnowledgeSearchResponse{}
		return c.api.DoJSON(ctx, http.MethodGet, "/knowledge", url.Values{"q": {question}}, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Entries) == 0 {
		return nil, nil
	}
	// the service ranks entries; the first one is the most relevant
	entry := resp.Entries[0]
	if entry.ID == "" {
		return nil, fmt.Errorf("knowledge entry without id")
	}
	return &entry, nil
}

// recordUsage bumps the entry's usage count in the background. Its outcome
// never reaches the caller of Search.
func (c *Client) recordUsage(id string) {
	c.usage.Add(1)
	go func() {
		defer c.usage.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.api.Timeout)
		defer cancel()
		if err := c.api.DoJSON(ctx, http.MethodPatch, "/knowledge", nil, types.UsageRequest{ID: id}, nil); err != nil {
			c.log.WithError(err).WithField("entry_id", id).Warn("usage increment failed")
		}
	}()
}

// Close waits for in-flight usage updates and releases the connection pool.
func (c *Client) Close() error {
	done := make(chan struct{})
	go func() {
		c.usage.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.api.Timeout):
		c.log.Warn("usage updates still in flight at close")
	}
	return c.api.Close()
}
