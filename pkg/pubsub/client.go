package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// project expands short topic and subscription IDs into resource names.
type project string

// resource returns projects/<p>/<kind>/<id>. A name that is already fully
// qualified for kind passes through; otherwise an empty project or name
// yields "".
func (p project) resource(kind, name string) string {
	id := strings.TrimSpace(name)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	proj := strings.TrimSpace(string(p))
	if proj == "" {
		return ""
	}
	return "projects/" + proj + "/" + kind + "/" + id
}

// Client wraps the Pub/Sub v2 client for the orders topic. Ping doubles as
// the readiness check.
type Client struct {
	client  *pubsub.Client
	project project
	cfg     config.PubSubConfig
}

// NewClient connects and fails when the orders topic, or the subscription
// when one is configured, is missing. PUBSUB_EMULATOR_HOST is honoured by
// the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	c := &Client{client: raw, project: project(projectID), cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"gcp_project":  projectID,
			"orders_topic": cfg.OrdersTopic,
		}), "pubsub.connected")
	}
	return c, nil
}

type existence struct {
	kind   string
	name   string
	lookup func(ctx context.Context, fullName string) error
}

func (c *Client) checks() []existence {
	out := []existence{{
		kind: "topics",
		name: c.cfg.OrdersTopic,
		lookup: func(ctx context.Context, fullName string) error {
			_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
			return err
		},
	}}
	if strings.TrimSpace(c.cfg.OrdersSubscription) != "" {
		out = append(out, existence{
			kind: "subscriptions",
			name: c.cfg.OrdersSubscription,
			lookup: func(ctx context.Context, fullName string) error {
				_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
				return err
			},
		})
	}
	return out
}

// Ping verifies the configured topic and subscription still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, check := range c.checks() {
		singular := strings.TrimSuffix(check.kind, "s")
		fullName := c.project.resource(check.kind, check.name)
		if fullName == "" {
			return fmt.Errorf("%s %q not configured", singular, check.name)
		}
		if err := check.lookup(ctx, fullName); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%s %q does not exist", singular, check.name)
			}
			return fmt.Errorf("check %s %q: %w", singular, check.name, err)
		}
	}
	return nil
}

// Publisher returns a handle for a topic ID or resource name, or nil when
// the client or the name is unusable.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if fullName := c.project.resource("topics", name); fullName != "" {
		return c.client.Publisher(fullName)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
