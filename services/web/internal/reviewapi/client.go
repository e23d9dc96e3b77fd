// Package reviewapi talks to the review service over HTTP and translates its
// responses into the client error taxonomy in domain.
package reviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jbytow/coffeetica/pkg/httpclient"
	"github.com/jbytow/coffeetica/pkg/httputil"
	"github.com/jbytow/coffeetica/pkg/logger"
	"github.com/jbytow/coffeetica/pkg/middleware"
	"github.com/jbytow/coffeetica/services/web/internal/domain"
	"github.com/jbytow/coffeetica/services/web/internal/session"
)

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker httpclient.CircuitBreakerConfig
}

// DefaultConfig returns settings for a review service at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Breaker: httpclient.DefaultCircuitBreakerConfig("review-api"),
	}
}

// Client is the review repository client. It never retries; a failed call is
// reported once and the caller decides what to do.
type Client struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
	session session.Provider
	logger  *slog.Logger
}

// New creates a Client. Mutations and FetchMine read the bearer credential
// from sess.
func New(cfg Config, sess session.Provider, log *slog.Logger) *Client {
	hc := httpclient.New(httpclient.Config{
		Timeout:         cfg.Timeout,
		MaxRetries:      0,
		MaxConnsPerHost: 10,
	})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpclient.NewCircuitBreakerClient(hc, cfg.Breaker, log),
		session: sess,
		logger:  log,
	}
}

// reviewBody is the create/update request payload.
type reviewBody struct {
	CoffeeID           int64   `json:"coffeeId"`
	Rating             float64 `json:"rating"`
	Content            string  `json:"content"`
	BrewingMethod      string  `json:"brewingMethod"`
	BrewingDescription *string `json:"brewingDescription"`
}

func newReviewBody(in domain.ReviewInput) reviewBody {
	b := reviewBody{
		CoffeeID:      in.CoffeeID,
		Rating:        in.Rating,
		Content:       in.Content,
		BrewingMethod: in.BrewingMethod,
	}
	if in.BrewingDescription != "" {
		d := in.BrewingDescription
		b.BrewingDescription = &d
	}
	return b
}

// FetchMine returns the caller's review of coffeeID. A missing review is
// reported as domain.ErrNotFound.
func (c *Client) FetchMine(ctx context.Context, coffeeID int64) (*domain.Review, error) {
	token, err := c.credential()
	if err != nil {
		return nil, err
	}

	q := url.Values{"coffeeId": {strconv.FormatInt(coffeeID, 10)}}
	resp, err := c.do(ctx, http.MethodGet, "/api/reviews/user?"+q.Encode(), token, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, &domain.NotFoundError{Resource: "review"}
	case resp.StatusCode == http.StatusNotFound:
		_ = httpclient.ParseResponseError(resp)
		return nil, &domain.NotFoundError{Resource: "review"}
	case resp.StatusCode != http.StatusOK:
		return nil, mapStatus(httpclient.ParseResponseError(resp))
	}
	return decode[domain.Review](resp)
}

// Create submits a new review. Incomplete input is rejected before any
// request is made.
func (c *Client) Create(ctx context.Context, in domain.ReviewInput) (*domain.Review, error) {
	if err := precheck(in); err != nil {
		return nil, err
	}
	token, err := c.credential()
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/reviews", token, newReviewBody(in))
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, mapStatus(httpclient.ParseResponseError(resp))
	}
	return decode[domain.Review](resp)
}

// Update replaces the editable fields of review reviewID. in.CoffeeID must be
// the coffee the review belongs to.
func (c *Client) Update(ctx context.Context, reviewID int64, in domain.ReviewInput) (*domain.Review, error) {
	if err := precheck(in); err != nil {
		return nil, err
	}
	token, err := c.credential()
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/reviews/"+strconv.FormatInt(reviewID, 10), token, newReviewBody(in))
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, withID(mapStatus(httpclient.ParseResponseError(resp)), reviewID)
	}
	return decode[domain.Review](resp)
}

// Delete removes review reviewID.
func (c *Client) Delete(ctx context.Context, reviewID int64) error {
	token, err := c.credential()
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, "/api/reviews/"+strconv.FormatInt(reviewID, 10), token, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return withID(mapStatus(httpclient.ParseResponseError(resp)), reviewID)
	}
	return nil
}

// ListReviews fetches one page of a review feed. No credential is needed.
func (c *Client) ListReviews(ctx context.Context, q domain.FeedQuery) (*domain.ReviewPage, error) {
	v := url.Values{}
	if q.CoffeeID != 0 {
		v.Set("coffeeId", strconv.FormatInt(q.CoffeeID, 10))
	}
	if q.UserID != 0 {
		v.Set("userId", strconv.FormatInt(q.UserID, 10))
	}
	v.Set("page", strconv.Itoa(q.Page))
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.Direction != "" {
		v.Set("direction", q.Direction)
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/reviews?"+v.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(httpclient.ParseResponseError(resp))
	}
	return decode[domain.ReviewPage](resp)
}

// GetCoffee fetches a coffee with its rating aggregate and newest reviews.
func (c *Client) GetCoffee(ctx context.Context, coffeeID int64) (*domain.CoffeeDetails, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/coffees/"+strconv.FormatInt(coffeeID, 10), "", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		err := mapStatus(httpclient.ParseResponseError(resp))
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			nf.Resource, nf.ID = "coffee", coffeeID
		}
		return nil, err
	}
	return decode[domain.CoffeeDetails](resp)
}

func (c *Client) credential() (string, error) {
	token, ok := c.session.Credential()
	if !ok {
		return "", &domain.AuthError{Err: domain.ErrNoCredential}
	}
	return token, nil
}

// do sends one request. Transport failures, 5xx responses and an open breaker
// come back as *domain.TransientError; any other response is returned for
// the caller to inspect.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "review api call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return nil, &domain.TransientError{Status: se.Status, Err: err}
		}
		return nil, &domain.TransientError{Err: err}
	}

	c.logger.DebugContext(ctx, "review api call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// mapStatus converts a non-2xx, non-5xx response into the client taxonomy.
func mapStatus(se *httpclient.StatusError) error {
	switch se.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ValidationError{Message: se.Message, Fields: se.Fields}
	case http.StatusUnauthorized:
		return &domain.AuthError{Status: se.Status, Message: se.Message}
	case http.StatusForbidden:
		return &domain.ForbiddenError{Message: se.Message}
	case http.StatusNotFound:
		return &domain.NotFoundError{}
	case http.StatusConflict:
		return &domain.ConflictError{Message: se.Message}
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return &domain.TransientError{Status: se.Status, Err: se}
	default:
		if se.Status >= 500 {
			return &domain.TransientError{Status: se.Status, Err: se}
		}
		return fmt.Errorf("unexpected response: %w", se)
	}
}

func withID(err error, reviewID int64) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		nf.Resource, nf.ID = "review", reviewID
	}
	return err
}

// precheck rejects input the backend would refuse anyway.
func precheck(in domain.ReviewInput) error {
	fields := make(map[string]string)
	if in.Rating == 0 {
		fields["rating"] = "is required"
	}
	if strings.TrimSpace(in.Content) == "" {
		fields["content"] = "is required"
	}
	if strings.TrimSpace(in.BrewingMethod) == "" {
		fields["brewingMethod"] = "is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Message: "review is incomplete", Fields: fields}
	}
	return nil
}

func decode[T any](resp *http.Response) (*T, error) {
	var v T
	if err := json.NewDecoder(io.LimitReader(resp.Body, httputil.MaxBodyBytes)).Decode(&v); err != nil {
		return nil, &domain.TransientError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &v, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	_ = resp.Body.Close()
}
