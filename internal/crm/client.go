// Package crm talks to the CRM that owns leads and agents. The router reads
// the agent roster from it and writes assignments back to it.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Agent is the CRM's view of an assignable rep: identity plus the manually
// maintained fields the stats builder cannot derive.
type Agent struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Availability float64 `json:"availability"` // 0–1
	MaxActive    int     `json:"max_active"`
	DailyLimit   int     `json:"daily_limit"`
}

// Assignment is the writeback payload: which agent got which lead and why.
type Assignment struct {
	LeadID     string  `json:"lead_id"`
	BoardID    string  `json:"board_id,omitempty"`
	ItemID     string  `json:"item_id,omitempty"`
	AgentID    string  `json:"agent_id"`
	ProposalID string  `json:"proposal_id"`
	Score      float64 `json:"score"`
	Summary    string  `json:"summary,omitempty"`
}

type Client interface {
	ListAgents(ctx context.Context, orgID string) ([]Agent, error)
	AssignLead(ctx context.Context, orgID string, a Assignment) error
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("crm %s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *HTTPClient) ListAgents(ctx context.Context, orgID string) ([]Agent, error) {
	data, err := c.doReq(ctx, "GET", "/api/orgs/"+orgID+"/agents", nil)
	if err != nil {
		return nil, err
	}
	var agents []Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (c *HTTPClient) AssignLead(ctx context.Context, orgID string, a Assignment) error {
	_, err := c.doReq(ctx, "POST", "/api/orgs/"+orgID+"/assignments", a)
	return err
}
