package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/recon"
)

// HTTPClient implements EngineClient using the plenum HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Sessions ---

func (c *HTTPClient) CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, limit, offset int) (*ListSessionsResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", offset))
	}
	path := "/v1/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListSessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ActiveSession(ctx context.Context) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/active", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) FinalizeSession(ctx context.Context, id uint64) (*recon.FinalizeReport, error) {
	var report recon.FinalizeReport
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id)+"/finalize", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) SyncSession(ctx context.Context, id uint64) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id)+"/sync", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) RebuildSession(ctx context.Context, id uint64) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id)+"/rebuild", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// --- Laws ---

func (c *HTTPClient) AddLaw(ctx context.Context, sessionID uint64, req *AddLawRequest) (*model.Law, error) {
	var law model.Law
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/laws", req, &law); err != nil {
		return nil, err
	}
	return &law, nil
}

func (c *HTTPClient) GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	var law model.Law
	if err := c.doJSON(ctx, http.MethodGet, lawPath(key), nil, &law); err != nil {
		return nil, err
	}
	return &law, nil
}

func (c *HTTPClient) UpdateLawMetadata(ctx context.Context, key model.LawKey, req *AddLawRequest) (*model.Law, error) {
	var law model.Law
	if err := c.doJSON(ctx, http.MethodPatch, lawPath(key), req, &law); err != nil {
		return nil, err
	}
	return &law, nil
}

func (c *HTTPClient) SyncLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	var law model.Law
	if err := c.doJSON(ctx, http.MethodPost, lawPath(key)+"/sync", nil, &law); err != nil {
		return nil, err
	}
	return &law, nil
}

func (c *HTTPClient) ListLaws(ctx context.Context, req *ListLawsRequest) (*ListLawsResponse, error) {
	q := url.Values{}
	if req.SessionID != nil {
		q.Set("session_id", fmt.Sprintf("%d", *req.SessionID))
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if len(req.FinalStatus) > 0 {
		q.Set("final_status", strings.Join(req.FinalStatus, ","))
	}
	if len(req.Category) > 0 {
		q.Set("category", strings.Join(req.Category, ","))
	}
	if req.Author != "" {
		q.Set("author", req.Author)
	}
	if req.Active != nil {
		q.Set("active", fmt.Sprintf("%t", *req.Active))
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/laws"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListLawsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Votes ---

func (c *HTTPClient) CastVote(ctx context.Context, key model.LawKey, choice, privateKeyHex string) (*model.Vote, error) {
	body := map[string]string{
		"choice":      choice,
		"private_key": privateKeyHex,
	}
	var vote model.Vote
	if err := c.doJSON(ctx, http.MethodPost, lawPath(key)+"/votes", body, &vote); err != nil {
		return nil, err
	}
	return &vote, nil
}

func (c *HTTPClient) ListVotes(ctx context.Context, key model.LawKey) (*ListVotesResponse, error) {
	var resp ListVotesResponse
	if err := c.doJSON(ctx, http.MethodGet, lawPath(key)+"/votes", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Legislators ---

func (c *HTTPClient) Eligibility(ctx context.Context, address string) (bool, error) {
	var resp struct {
		Eligible bool `json:"eligible"`
	}
	path := "/v1/legislators/" + url.PathEscape(address) + "/eligibility"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Eligible, nil
}

func (c *HTTPClient) Attendance(ctx context.Context, sessionID uint64, staleThresholdSecs int) (*AttendanceResponse, error) {
	path := sessionPath(sessionID) + "/attendance"
	if staleThresholdSecs > 0 {
		path += fmt.Sprintf("?stale_threshold_secs=%d", staleThresholdSecs)
	}
	var resp AttendanceResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func sessionPath(id uint64) string {
	return fmt.Sprintf("/v1/sessions/%d", id)
}

func lawPath(key model.LawKey) string {
	return fmt.Sprintf("/v1/sessions/%d/laws/%d", key.SessionID, key.LedgerLawID)
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
