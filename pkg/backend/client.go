// Package backend provides a client for the ARGO query service.
package backend

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

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apiurl"
	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/logging"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/probe"
)

// DefaultTimeout is the maximum time to wait for ordinary backend responses.
const DefaultTimeout = 30 * time.Second

// Backend endpoints, relative to the resolved base URL.
const (
	EndpointHealth               = "/health"
	EndpointQuery                = "/query"
	EndpointFloats               = "/floats"
	EndpointFloat                = "/float"
	EndpointUpload               = "/upload_netcdf"
	EndpointExportCSV            = "/export_csv"
	EndpointExportParquet        = "/export_parquet"
	EndpointExportNetCDF         = "/export_netcdf"
	EndpointSession              = "/session"
	EndpointDepthProfile         = "/data/depth_profile"
	EndpointTrajectory           = "/data/trajectory"
	EndpointTimeseries           = "/data/timeseries"
	EndpointRegion               = "/data/region"
	EndpointCompare              = "/compare"
	EndpointMultipleTrajectories = "/trajectories/multiple"
)

// maxErrorBodyLength bounds how much of an error body is kept in a StatusError.
const maxErrorBodyLength = 200

// Client provides access to the ARGO backend. Every request resolves the base
// URL at call time so overrides and auto-discovery apply immediately.
type Client struct {
	httpClient   *http.Client
	uploadClient *http.Client
	resolver     *apiurl.Resolver
	logger       *zap.Logger
}

// NewClient creates a backend client. A zero timeout uses DefaultTimeout.
// Uploads are not bound by the timeout.
func NewClient(resolver *apiurl.Resolver, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{},
		resolver:     resolver,
		logger:       logger.Named("backend"),
	}
}

// HTTPClient returns the client used for ordinary requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Resolver returns the base-URL resolver the client builds URLs with.
func (c *Client) Resolver() *apiurl.Resolver {
	return c.resolver
}

// ============================================================================
// Queries and sessions
// ============================================================================

// Query sends a natural-language query. The response is returned verbatim.
func (c *Client) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	c.logger.Debug("Submitting query",
		zap.String("query", logging.SanitizeQueryText(req.Query)),
		zap.String("session_id", req.SessionID))

	resp, err := c.do(ctx, "query", http.MethodPost, EndpointQuery, nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return parseResult("query", resp.Body)
}

// SessionHistory fetches the backend's conversation memory for a session.
func (c *Client) SessionHistory(ctx context.Context, sessionID string) (*models.SessionHistory, error) {
	endpoint := EndpointSession + "/" + url.PathEscape(sessionID) + "/history"
	resp, err := c.do(ctx, "session history", http.MethodGet, endpoint, nil, nil, "")
	if err != nil {
		return nil, err
	}

	var history models.SessionHistory
	if err := json.Unmarshal(resp.Body, &history); err != nil {
		return nil, fmt.Errorf("%w: session history: %w", apperrors.ErrUnexpectedResponse, err)
	}
	return &history, nil
}

// ClearSession drops the backend's memory of a session.
func (c *Client) ClearSession(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	endpoint := EndpointSession + "/" + url.PathEscape(sessionID)
	resp, err := c.do(ctx, "clear session", http.MethodDelete, endpoint, nil, nil, "")
	if err != nil {
		return nil, err
	}

	var status models.SessionStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("%w: clear session: %w", apperrors.ErrUnexpectedResponse, err)
	}
	return &status, nil
}

// ============================================================================
// Floats
// ============================================================================

// ListFloats fetches up to limit float summaries starting at offset.
func (c *Client) ListFloats(ctx context.Context, limit, offset int) (*models.FloatList, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	resp, err := c.do(ctx, "list floats", http.MethodGet, EndpointFloats, params, nil, "")
	if err != nil {
		return nil, err
	}

	var list models.FloatList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("%w: list floats: %w", apperrors.ErrUnexpectedResponse, err)
	}
	return &list, nil
}

// FloatDetailCandidates returns the detail URLs tried for a float, in order.
func (c *Client) FloatDetailCandidates(floatID string) ([]string, error) {
	escaped := url.PathEscape(floatID)
	specs := []struct {
		endpoint string
		params   url.Values
	}{
		{EndpointFloat + "/" + escaped, nil},
		{EndpointFloats + "/" + escaped, nil},
		{EndpointFloats, url.Values{"float_id": {floatID}}},
	}

	candidates := make([]string, 0, len(specs))
	for _, s := range specs {
		u, err := c.resolver.AbsoluteURL(s.endpoint, s.params)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, u)
	}
	return candidates, nil
}

// FloatDetails fetches an arbitrary details payload for one float, taking the
// first detail endpoint shape that answers successfully. A top-level array is
// returned under the key "floats".
func (c *Client) FloatDetails(ctx context.Context, floatID string) (*models.Row, error) {
	candidates, err := c.FloatDetailCandidates(floatID)
	if err != nil {
		return nil, fmt.Errorf("failed to build float detail URLs: %w", err)
	}

	res, err := probe.FirstSuccess(ctx, c.httpClient, candidates, probe.Options{
		Header: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch details for float %s: %w", floatID, err)
	}

	c.logger.Debug("Fetched float details",
		zap.String("float_id", floatID),
		zap.String("url", logging.SanitizeURL(res.URL)))

	trimmed := bytes.TrimSpace(res.Body)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		row := models.NewRow()
		if err := row.UnmarshalJSON(trimmed); err != nil {
			return nil, fmt.Errorf("%w: float details: %w", apperrors.ErrUnexpectedResponse, err)
		}
		return row, nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: float details: %w", apperrors.ErrUnexpectedResponse, err)
		}
		return models.RowOf("floats", items), nil
	default:
		return nil, fmt.Errorf("%w: float details are not JSON", apperrors.ErrUnexpectedResponse)
	}
}

// ============================================================================
// Direct data views
// ============================================================================

// DepthProfile fetches one float's depth profile for parameter.
func (c *Client) DepthProfile(ctx context.Context, floatID, parameter string) (*models.QueryResult, error) {
	return c.dataView(ctx, "depth profile", EndpointDepthProfile+"/"+url.PathEscape(floatID), parameterValues(parameter), models.VizProfile)
}

// Trajectory fetches one float's positions.
func (c *Client) Trajectory(ctx context.Context, floatID string) (*models.QueryResult, error) {
	return c.dataView(ctx, "trajectory", EndpointTrajectory+"/"+url.PathEscape(floatID), nil, models.VizMap)
}

// Timeseries fetches one float's parameter over the last year.
func (c *Client) Timeseries(ctx context.Context, floatID, parameter string) (*models.QueryResult, error) {
	return c.dataView(ctx, "timeseries", EndpointTimeseries+"/"+url.PathEscape(floatID), parameterValues(parameter), models.VizTimeseries)
}

// RegionData fetches the floats of a named ocean region.
func (c *Client) RegionData(ctx context.Context, region string) (*models.QueryResult, error) {
	return c.dataView(ctx, "region", EndpointRegion+"/"+url.PathEscape(region), nil, models.VizMap)
}

// CompareFloats compares parameter across at least two floats.
func (c *Client) CompareFloats(ctx context.Context, floatIDs []string, parameter string) (*models.QueryResult, error) {
	if len(floatIDs) < 2 {
		return nil, fmt.Errorf("%w: at least two float IDs are required for comparison", apperrors.ErrInvalidRequest)
	}
	payload := map[string]any{"float_ids": floatIDPayload(floatIDs)}
	if parameter != "" {
		payload["parameter"] = parameter
	}
	return c.postView(ctx, "compare floats", EndpointCompare, payload, models.VizProfileComparison)
}

// MultipleTrajectories fetches positions for one or more floats.
func (c *Client) MultipleTrajectories(ctx context.Context, floatIDs []string) (*models.QueryResult, error) {
	if len(floatIDs) < 1 {
		return nil, fmt.Errorf("%w: at least one float ID is required", apperrors.ErrInvalidRequest)
	}
	payload := map[string]any{"float_ids": floatIDPayload(floatIDs)}
	return c.postView(ctx, "multiple trajectories", EndpointMultipleTrajectories, payload, models.VizMap)
}

func (c *Client) dataView(ctx context.Context, op, endpoint string, params url.Values, kind string) (*models.QueryResult, error) {
	resp, err := c.do(ctx, op, http.MethodGet, endpoint, params, nil, "")
	if err != nil {
		return nil, err
	}
	result, err := parseResult(op, resp.Body)
	if err != nil {
		return nil, err
	}
	return result.WithDefaultViz(kind), nil
}

func (c *Client) postView(ctx context.Context, op, endpoint string, payload any, kind string) (*models.QueryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	resp, err := c.do(ctx, op, http.MethodPost, endpoint, nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	result, err := parseResult(op, resp.Body)
	if err != nil {
		return nil, err
	}
	return result.WithDefaultViz(kind), nil
}

func parameterValues(parameter string) url.Values {
	if parameter == "" {
		return nil
	}
	return url.Values{"parameter": {parameter}}
}

// floatIDPayload sends numeric IDs as numbers, which is what the backend expects.
func floatIDPayload(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			out = append(out, n)
			continue
		}
		out = append(out, id)
	}
	return out
}

// ============================================================================
// Exports
// ============================================================================

// ExportResponse is a raw export download.
type ExportResponse struct {
	URL                string
	ContentType        string
	ContentDisposition string
	Body               []byte
}

// ExportEndpoint maps an export format name to its endpoint.
func ExportEndpoint(format string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return EndpointExportCSV, true
	case "parquet":
		return EndpointExportParquet, true
	case "netcdf", "nc":
		return EndpointExportNetCDF, true
	default:
		return "", false
	}
}

// Export downloads target, which is either a format name or an export link
// (absolute, or relative to the base URL). A link must stay on the backend's
// scheme and host; anything else is ErrInvalidRequest and no request is made.
func (c *Client) Export(ctx context.Context, target string, params url.Values) (*ExportResponse, error) {
	endpoint, ok := ExportEndpoint(target)
	if !ok {
		endpoint = strings.TrimSpace(target)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: export target is empty", apperrors.ErrInvalidRequest)
	}
	if !ok {
		resolved, err := c.resolver.AbsoluteURL(endpoint, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
		}
		if !c.resolver.SameOrigin(resolved) {
			c.logger.Warn("Refusing export link outside the backend",
				zap.String("url", logging.SanitizeURL(resolved)))
			return nil, fmt.Errorf("%w: export link is not on the backend host", apperrors.ErrInvalidRequest)
		}
	}

	resp, err := c.do(ctx, "export", http.MethodGet, endpoint, params, nil, "")
	if err != nil {
		return nil, err
	}
	return &ExportResponse{
		URL:                resp.URL,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Body:               resp.Body,
	}, nil
}

// ============================================================================
// Transport
// ============================================================================

type response struct {
	URL    string
	Header http.Header
	Body   []byte
}

// do executes one request against the resolved base URL. Non-2xx statuses
// become *apperrors.StatusError.
func (c *Client) do(ctx context.Context, op, method, endpoint string, params url.Values, body io.Reader, contentType string) (*response, error) {
	target, err := c.resolver.AbsoluteURL(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("Calling backend",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", logging.SanitizeURL(target)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend (%s): %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Backend returned error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("url", logging.SanitizeURL(target)))
		return nil, &apperrors.StatusError{Op: op, StatusCode: resp.StatusCode, Body: errorDetail(respBody)}
	}

	return &response{URL: target, Header: resp.Header, Body: respBody}, nil
}

func parseResult(op string, body []byte) (*models.QueryResult, error) {
	result, err := models.ParseQueryResult(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrUnexpectedResponse, op, err)
	}
	return result, nil
}

// errorDetail extracts FastAPI's {"detail": ...} message, falling back to the
// truncated body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
			return logging.TruncateString(detail, maxErrorBodyLength)
		}
		if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
			return logging.TruncateString(string(payload.Detail), maxErrorBodyLength)
		}
		if payload.Error != "" {
			return logging.TruncateString(payload.Error, maxErrorBodyLength)
		}
	}
	return logging.TruncateString(strings.TrimSpace(string(body)), maxErrorBodyLength)
}
