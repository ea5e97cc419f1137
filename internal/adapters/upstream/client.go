package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genieiq/genieiq/internal/domain/payload"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 4096

// SpaceSummary is one entry of a space listing.
type SpaceSummary struct {
	ID          string `json:"space_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// SpacePage is one page of a space listing.
type SpacePage struct {
	Spaces        []SpaceSummary `json:"spaces"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// DatabaseCredential is a short-lived database login token.
type DatabaseCredential struct {
	Token     string
	ExpiresAt time.Time
}

// Client calls the workspace REST API.
type Client struct {
	host       string
	tokens     TokenSource
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a client for the workspace at host.
func NewClient(host string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		host:       strings.TrimRight(host, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the workspace URL.
func (c *Client) Host() string { return c.host }

// ListSpaces returns one page of spaces.
func (c *Client) ListSpaces(ctx context.Context, pageToken string, pageSize int) (SpacePage, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	body, err := c.do(ctx, "list_spaces", http.MethodGet, "/api/2.0/genie/spaces", q, nil)
	if err != nil {
		return SpacePage{}, err
	}
	var page SpacePage
	if err := json.Unmarshal(body, &page); err != nil {
		return SpacePage{}, fmt.Errorf("%w: list_spaces: %v", ErrDecode, err)
	}
	if page.Spaces == nil {
		page.Spaces = []SpaceSummary{}
	}
	return page, nil
}

// ReadSpace returns the base record of a space.
func (c *Client) ReadSpace(ctx context.Context, id string) (payload.Value, error) {
	return c.get(ctx, "read_space", "/api/2.0/genie/spaces/"+url.PathEscape(id), nil)
}

// ExportSpace returns the decoded serialized space. When the response carries
// no serialized form the raw response is returned.
func (c *Client) ExportSpace(ctx context.Context, id string) (payload.Value, error) {
	q := url.Values{"include_serialized_space": {"true"}}
	v, err := c.get(ctx, "export_space", "/api/2.0/genie/spaces/"+url.PathEscape(id), q)
	if err != nil {
		return payload.Value{}, err
	}
	ser := v.Get("serialized_space")
	if s, ok := ser.Str(); ok && strings.TrimSpace(s) != "" {
		doc, err := payload.Parse([]byte(s))
		if err != nil {
			return payload.Value{}, fmt.Errorf("%w: serialized_space: %v", ErrDecode, err)
		}
		return doc, nil
	}
	if ser.Kind() == payload.Object {
		return ser, nil
	}
	return v, nil
}

// ReadSpaceRich returns the richer data-room record of a space.
func (c *Client) ReadSpaceRich(ctx context.Context, id string) (payload.Value, error) {
	return c.get(ctx, "read_space_rich", "/api/2.0/data-rooms/"+url.PathEscape(id), nil)
}

// ReadWarehouse returns a SQL warehouse record.
func (c *Client) ReadWarehouse(ctx context.Context, id string) (payload.Value, error) {
	return c.get(ctx, "read_warehouse", "/api/2.0/sql/warehouses/"+url.PathEscape(id), nil)
}

// ReadTableMetadata returns catalog metadata for a table.
func (c *Client) ReadTableMetadata(ctx context.Context, fullName string) (payload.Value, error) {
	return c.get(ctx, "read_table", "/api/2.1/unity-catalog/tables/"+url.PathEscape(fullName), nil)
}

// MintDatabaseCredential issues a database login token for instance.
func (c *Client) MintDatabaseCredential(ctx context.Context, instance string) (DatabaseCredential, error) {
	reqBody := map[string]any{
		"request_id": uuid.NewString(),
	}
	if instance != "" {
		reqBody["instance_names"] = []string{instance}
	}
	body, err := c.do(ctx, "mint_credential", http.MethodPost, "/api/2.0/database/credentials", nil, reqBody)
	if err != nil {
		return DatabaseCredential{}, err
	}
	var resp struct {
		Token          string `json:"token"`
		ExpirationTime string `json:"expiration_time"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return DatabaseCredential{}, fmt.Errorf("%w: mint_credential", ErrDecode)
	}
	cred := DatabaseCredential{Token: resp.Token}
	if t, err := time.Parse(time.RFC3339, resp.ExpirationTime); err == nil {
		cred.ExpiresAt = t
	}
	return cred, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) (payload.Value, error) {
	body, err := c.do(ctx, op, http.MethodGet, path, q, nil)
	if err != nil {
		return payload.Value{}, err
	}
	v, err := payload.Parse(body)
	if err != nil {
		return payload.Value{}, fmt.Errorf("%w: %s: %v", ErrDecode, op, err)
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in any) ([]byte, error) {
	if c.host == "" {
		return nil, ErrNoHost
	}
	if c.tokens == nil {
		return nil, ErrNoCredentials
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	endpoint := c.host + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordUpstreamRequest(op, "transport_error", latency)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(op, strconv.Itoa(resp.StatusCode), latency)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(op, resp.StatusCode, body)
		c.log.Debug(ctx, "upstream request failed",
			logger.String("op", op),
			logger.Int("status", resp.StatusCode),
			logger.String("error_code", apiErr.ErrorCode),
		)
		return nil, apiErr
	}
	return body, nil
}

func newAPIError(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, StatusCode: status}
	var parsed struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.ErrorCode = parsed.ErrorCode
		e.Message = parsed.Message
		if e.Message == "" {
			e.Message = parsed.Error
		}
	}
	if e.Message == "" && len(body) > 0 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
