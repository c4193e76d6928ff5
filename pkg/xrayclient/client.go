package xrayclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"xui-fleet/internal/config"
	"xui-fleet/internal/constants"
	apperrors "xui-fleet/internal/errors"
	"xui-fleet/internal/metrics"
	"xui-fleet/internal/models"
	"xui-fleet/pkg/retry"
)

// Operation names used in errors, logs and metrics
const (
	OpLogin          = "login"
	OpListInbounds   = "list_inbounds"
	OpAddClient      = "add_client"
	OpDeleteClient   = "delete_client"
	OpTrafficByID    = "traffic_by_id"
	OpTrafficByEmail = "traffic_by_email"
	OpOnlines        = "onlines"
)

// Options tunes the HTTP behaviour shared by all panel clients
type Options struct {
	Timeout        time.Duration
	MaxConnections int
	// Policy overrides the default retry policy. Its Retryable is kept when set.
	Policy  *retry.Policy
	Metrics *metrics.Metrics
}

// Client talks to the panel API of one server. It keeps no session state:
// every call gets the session it should use.
type Client struct {
	httpClient *resty.Client
	server     config.ServerConfig
	policy     retry.Policy
	metrics    *metrics.Metrics
	logger     *logrus.Entry
}

// NewClient creates a new panel API client for a server
func NewClient(server config.ServerConfig, opts Options, logger *logrus.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultTimeout * time.Second
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = constants.DefaultMaxConnections
	}

	policy := retry.DefaultPolicy(IsTransient)
	if opts.Policy != nil {
		policy = *opts.Policy
		if policy.Retryable == nil {
			policy.Retryable = IsTransient
		}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     opts.MaxConnections,
		MaxIdleConnsPerHost: opts.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !server.VerifySSL},
	}

	// Retries are handled by policy, cookies by the caller's session
	httpClient := resty.New().
		SetBaseURL(server.BaseURL).
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetCookieJar(nil)

	return &Client{
		httpClient: httpClient,
		server:     server,
		policy:     policy,
		metrics:    opts.Metrics,
		logger:     logger.WithField("server", server.ID),
	}
}

// ServerID returns the id of the server this client talks to
func (c *Client) ServerID() string {
	return c.server.ID
}

// IsTransient is the default retry classifier: transport failures and non-2xx
// answers are retried, everything else is not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return isHTTPFailure(apiErr.Status)
	}
	var authErr *apperrors.AuthError
	if errors.As(err, &authErr) {
		return isHTTPFailure(authErr.Status)
	}
	var unsupported *apperrors.UnsupportedFeatureError
	if errors.As(err, &unsupported) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Authenticate logs in and returns the session cookies. ExpiresAt is left for
// the caller to decide.
func (c *Client) Authenticate(ctx context.Context) (*models.Session, error) {
	return retry.Value(ctx, c.policyFor(OpLogin), c.login)
}

func (c *Client) login(ctx context.Context) (*models.Session, error) {
	c.logger.Debugf("Logging in to panel at %s", c.server.BaseURL)

	resp, err := c.send(ctx, OpLogin, http.MethodPost, "/login", nil, func(r *resty.Request) {
		r.SetFormData(map[string]string{
			"username": c.server.Username,
			"password": c.server.Password,
		})
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, &apperrors.AuthError{
			ServerID: c.server.ID,
			Status:   resp.StatusCode(),
			Message:  truncate(string(resp.Body()), maxErrorBody),
		}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, &apperrors.AuthError{ServerID: c.server.ID, Message: "malformed login response"}
	}
	if !apiResp.Success {
		msg := apiResp.Msg
		if msg == "" {
			msg = "login rejected"
		}
		return nil, &apperrors.AuthError{ServerID: c.server.ID, Message: msg}
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, &apperrors.AuthError{ServerID: c.server.ID, Message: "no session cookie received"}
	}

	c.logger.Info("Successfully logged in to panel")
	return &models.Session{Cookies: cookies}, nil
}

// ListInbounds fetches the raw inbound list including client stats
func (c *Client) ListInbounds(ctx context.Context, session *models.Session) ([]models.InboundRaw, error) {
	return retry.Value(ctx, c.policyFor(OpListInbounds), func(ctx context.Context) ([]models.InboundRaw, error) {
		resp, err := c.send(ctx, OpListInbounds, http.MethodGet, "/panel/api/inbounds/list", session, nil)
		if err != nil {
			return nil, err
		}

		obj, err := c.decodeEnvelope(OpListInbounds, resp)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return []models.InboundRaw{}, nil
		}

		var inbounds []models.InboundRaw
		if err := json.Unmarshal(obj, &inbounds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inbounds: %w", err)
		}
		return inbounds, nil
	})
}

// CreateClient adds a client with the fixed defaults to an inbound
func (c *Client) CreateClient(ctx context.Context, session *models.Session, inboundID int, email string, ownerID int64) error {
	settings, err := json.Marshal(models.ClientSettings{
		Clients: []models.Client{models.NewClient(email, c.server.Flow, ownerID)},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	body := models.AddClientRequest{ID: inboundID, Settings: string(settings)}

	c.logger.Infof("Adding client %s to inbound %d", email, inboundID)

	return c.policyFor(OpAddClient).Do(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, OpAddClient, http.MethodPost, "/panel/api/inbounds/addClient", session, func(r *resty.Request) {
			r.SetHeader("Content-Type", "application/json").SetBody(body)
		})
		if err != nil {
			return err
		}
		_, err = c.decodeEnvelope(OpAddClient, resp)
		return err
	})
}

// DeleteClient removes a client from an inbound. The panel is not idempotent
// here: deleting an absent client is reported as an error.
func (c *Client) DeleteClient(ctx context.Context, session *models.Session, inboundID int, clientID string) error {
	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", inboundID, url.PathEscape(clientID))

	c.logger.Infof("Deleting client %s from inbound %d", clientID, inboundID)

	return c.policyFor(OpDeleteClient).Do(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, OpDeleteClient, http.MethodPost, path, session, nil)
		if err != nil {
			return err
		}
		_, err = c.decodeEnvelope(OpDeleteClient, resp)
		return err
	})
}

// GetTraffic looks the client up by id first and by email second. A client
// without traffic data yields a zero sample; only transport failures and
// failed by-id answers other than 404 are returned as errors.
func (c *Client) GetTraffic(ctx context.Context, session *models.Session, client models.ClientRecord) (models.TrafficSample, error) {
	if client.UUID != "" {
		counters, err := retry.Value(ctx, c.policyFor(OpTrafficByID), func(ctx context.Context) (*models.Counters, error) {
			return c.trafficByID(ctx, session, client)
		})
		if err != nil {
			return models.TrafficSample{}, err
		}
		if counters != nil {
			return counters.Sample(), nil
		}
	}

	if client.Email != "" {
		counters, err := c.trafficByEmail(ctx, session, client.Email)
		if err != nil {
			return models.TrafficSample{}, err
		}
		if counters != nil {
			return counters.Sample(), nil
		}
	}

	c.logger.Debugf("No traffic data for client %s", client.Email)
	return models.TrafficSample{}, nil
}

func (c *Client) trafficByID(ctx context.Context, session *models.Session, client models.ClientRecord) (*models.Counters, error) {
	path := "/panel/api/inbounds/getClientTrafficsById/" + url.PathEscape(client.UUID)
	resp, err := c.send(ctx, OpTrafficByID, http.MethodGet, path, session, func(r *resty.Request) {
		if client.InboundID != 0 {
			r.SetQueryParam("inId", fmt.Sprint(client.InboundID))
		}
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, c.statusError(OpTrafficByID, resp)
	}
	return c.parseCounters(OpTrafficByID, resp.Body()), nil
}

// trafficByEmail is the fallback lookup. It is not retried and any HTTP
// status failure counts as no data.
func (c *Client) trafficByEmail(ctx context.Context, session *models.Session, email string) (*models.Counters, error) {
	path := "/panel/api/inbounds/getClientTraffics/" + url.PathEscape(email)
	resp, err := c.send(ctx, OpTrafficByEmail, http.MethodGet, path, session, nil)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		c.logger.Debugf("Traffic by email for %s answered %d", email, resp.StatusCode())
		return nil, nil
	}
	return c.parseCounters(OpTrafficByEmail, resp.Body()), nil
}

func (c *Client) parseCounters(operation string, body []byte) *models.Counters {
	obj := extractObj(body)
	if obj == nil {
		return nil
	}

	var counters models.Counters
	if err := json.Unmarshal(obj, &counters); err != nil {
		c.logger.Debugf("Ignoring undecodable %s payload: %v", operation, err)
		return nil
	}
	if counters.IsEmpty() {
		return nil
	}
	return &counters
}

// GetOnlineClients returns the emails of the clients currently online
func (c *Client) GetOnlineClients(ctx context.Context, session *models.Session) ([]string, error) {
	return retry.Value(ctx, c.policyFor(OpOnlines), func(ctx context.Context) ([]string, error) {
		resp, err := c.send(ctx, OpOnlines, http.MethodPost, "/panel/api/inbounds/onlines", session, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode() == http.StatusNotFound {
			return nil, &apperrors.UnsupportedFeatureError{
				ServerID: c.server.ID,
				Feature:  "online clients",
				Message:  "the onlines endpoint is missing, the panel version is too old",
			}
		}

		obj, err := c.decodeEnvelope(OpOnlines, resp)
		if err != nil {
			return nil, err
		}

		emails := []string{}
		if obj == nil {
			return emails, nil
		}
		if err := json.Unmarshal(obj, &emails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal online clients: %w", err)
		}
		return emails, nil
	})
}

// send executes one HTTP exchange and records it. Only transport failures are
// returned as errors, status handling is left to the caller.
func (c *Client) send(ctx context.Context, operation, method, path string, session *models.Session, prepare func(*resty.Request)) (*resty.Response, error) {
	req := c.httpClient.R().SetContext(ctx)
	if session != nil {
		req.SetCookies(session.Cookies)
	}
	if prepare != nil {
		prepare(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.metrics.ObserveRequest(c.server.ID, operation, 0, time.Since(start))
		return nil, fmt.Errorf("%s request to %s failed: %w", operation, c.server.ID, err)
	}
	c.metrics.ObserveRequest(c.server.ID, operation, resp.StatusCode(), time.Since(start))

	c.logger.Debugf("%s %s answered %d", method, path, resp.StatusCode())
	return resp, nil
}

func (c *Client) policyFor(operation string) retry.Policy {
	p := c.policy
	p.OnRetry = func(next int, err error, delay time.Duration) {
		c.metrics.ObserveRetry(c.server.ID, operation)
		c.logger.Warnf("%s failed, attempt %d in %s: %v", operation, next, delay.Round(time.Millisecond), err)
	}
	return p
}
