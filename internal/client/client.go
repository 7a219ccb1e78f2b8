// Package client talks to a famhub server over its JSON API and keeps live
// copies of family collections in sync with the realtime feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/famhub/internal/ledger"
	"github.com/dukerupert/famhub/internal/model"
)

// ErrTransient marks failures worth retrying: the server could not be
// reached or answered with a 5xx.
var ErrTransient = errors.New("transient server error")

// APIError is a non-2xx answer from the server. It unwraps to the matching
// ledger sentinel, or to ErrTransient for 5xx answers.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("famhub: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("famhub: %s (%s)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "insufficient_balance":
		return ledger.ErrInsufficientBalance
	case "invalid_state":
		return ledger.ErrInvalidState
	case "forbidden":
		return ledger.ErrForbidden
	case "not_found":
		return ledger.ErrNotFound
	}
	if e.Status >= 500 {
		return ErrTransient
	}
	return nil
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the server at baseURL acting as the holder of
// token. A nil httpClient gets a default with a 10 second timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// WithToken returns a copy of c that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) Token() string   { return c.token }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil {
			apiErr.Code, apiErr.Message = e.Code, e.Error
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Session is a signed-in profile.
type Session struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
	Family  *model.Family  `json:"family,omitempty"`
}

// CreateFamily registers a family and its first parent.
func (c *Client) CreateFamily(ctx context.Context, familyName, displayName string) (*Session, error) {
	var s Session
	in := map[string]string{"family_name": familyName, "display_name": displayName}
	if err := c.do(ctx, http.MethodPost, "/api/families", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// JoinFamily adds a parent to the family holding secretKey.
func (c *Client) JoinFamily(ctx context.Context, secretKey, displayName string) (*Session, error) {
	var s Session
	in := map[string]string{"secret_key": secretKey, "display_name": displayName}
	if err := c.do(ctx, http.MethodPost, "/api/families/join", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Family(ctx context.Context) (*model.Family, error) {
	var f model.Family
	if err := c.do(ctx, http.MethodGet, "/api/family", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Profiles(ctx context.Context) ([]model.Profile, error) {
	var ps []model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profiles", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// CreateProfile adds a member to the caller's family. Parents only.
func (c *Client) CreateProfile(ctx context.Context, displayName string, role model.Role) (*model.Profile, error) {
	var p model.Profile
	in := map[string]any{"display_name": displayName, "role": role}
	if err := c.do(ctx, http.MethodPost, "/api/profiles", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SwitchSession signs in as another family member. pin is ignored for
// profiles without one.
func (c *Client) SwitchSession(ctx context.Context, profileID, pin string) (*Session, error) {
	var in any
	if pin != "" {
		in = map[string]string{"pin": pin}
	}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/profiles/"+url.PathEscape(profileID)+"/session", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ChoreInput is the editable part of a chore.
type ChoreInput struct {
	Title      string  `json:"title"`
	Points     int     `json:"points"`
	AssignedTo *string `json:"assigned_to"`
}

func (c *Client) Chores(ctx context.Context) ([]model.Chore, error) {
	var cs []model.Chore
	if err := c.do(ctx, http.MethodGet, "/api/chores", nil, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (c *Client) CreateChore(ctx context.Context, in ChoreInput) (*model.Chore, error) {
	var ch model.Chore
	if err := c.do(ctx, http.MethodPost, "/api/chores", in, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) UpdateChore(ctx context.Context, id string, in ChoreInput) (*model.Chore, error) {
	var ch model.Chore
	if err := c.do(ctx, http.MethodPut, "/api/chores/"+url.PathEscape(id), in, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) DeleteChore(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chores/"+url.PathEscape(id), nil, nil)
}

// ToggleChore flips a chore's completion, claiming it when unassigned.
func (c *Client) ToggleChore(ctx context.Context, id string) (*ledger.ChoreResult, error) {
	var res ledger.ChoreResult
	if err := c.do(ctx, http.MethodPost, "/api/chores/"+url.PathEscape(id)+"/completion", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Rewards(ctx context.Context) ([]model.Reward, error) {
	var rs []model.Reward
	if err := c.do(ctx, http.MethodGet, "/api/rewards", nil, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (c *Client) CreateReward(ctx context.Context, name string, cost int, icon string) (*model.Reward, error) {
	var rw model.Reward
	in := map[string]any{"name": name, "cost": cost, "icon": icon}
	if err := c.do(ctx, http.MethodPost, "/api/rewards", in, &rw); err != nil {
		return nil, err
	}
	return &rw, nil
}

func (c *Client) DeleteReward(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/rewards/"+url.PathEscape(id), nil, nil)
}

// Redeem asks for a reward, reserving its cost from the caller's balance.
func (c *Client) Redeem(ctx context.Context, rewardID string) (*ledger.RedemptionResult, error) {
	return c.redemption(ctx, "/api/rewards/"+url.PathEscape(rewardID)+"/redeem")
}

func (c *Client) Approve(ctx context.Context, redemptionID string) (*ledger.RedemptionResult, error) {
	return c.redemption(ctx, "/api/redemptions/"+url.PathEscape(redemptionID)+"/approve")
}

// Reject refunds the reserved points.
func (c *Client) Reject(ctx context.Context, redemptionID string) (*ledger.RedemptionResult, error) {
	return c.redemption(ctx, "/api/redemptions/"+url.PathEscape(redemptionID)+"/reject")
}

func (c *Client) redemption(ctx context.Context, path string) (*ledger.RedemptionResult, error) {
	var res ledger.RedemptionResult
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Redemptions(ctx context.Context) ([]model.RedemptionView, error) {
	var vs []model.RedemptionView
	if err := c.do(ctx, http.MethodGet, "/api/redemptions", nil, &vs); err != nil {
		return nil, err
	}
	return vs, nil
}

// GroceryInput creates or edits a grocery item. Empty fields are left as
// they are on update.
type GroceryInput struct {
	ItemName    string `json:"item_name,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	Category    string `json:"category,omitempty"`
	IsPurchased *bool  `json:"is_purchased,omitempty"`
}

func (c *Client) Groceries(ctx context.Context) ([]model.Grocery, error) {
	var gs []model.Grocery
	if err := c.do(ctx, http.MethodGet, "/api/groceries", nil, &gs); err != nil {
		return nil, err
	}
	return gs, nil
}

func (c *Client) AddGrocery(ctx context.Context, in GroceryInput) (*model.Grocery, error) {
	var g model.Grocery
	if err := c.do(ctx, http.MethodPost, "/api/groceries", in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) UpdateGrocery(ctx context.Context, id string, in GroceryInput) (*model.Grocery, error) {
	var g model.Grocery
	if err := c.do(ctx, http.MethodPut, "/api/groceries/"+url.PathEscape(id), in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) DeleteGrocery(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/groceries/"+url.PathEscape(id), nil, nil)
}

// ClearPurchased removes every purchased item and reports how many went.
func (c *Client) ClearPurchased(ctx context.Context) (int, error) {
	var out struct {
		Cleared int `json:"cleared"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/groceries/clear-purchased", nil, &out); err != nil {
		return 0, err
	}
	return out.Cleared, nil
}

func (c *Client) Notes(ctx context.Context) ([]model.Note, error) {
	var ns []model.Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// AddNote posts a sticky note. An empty color gets the default.
func (c *Client) AddNote(ctx context.Context, content, color string) (*model.Note, error) {
	var n model.Note
	in := map[string]string{"content": content, "color": color}
	if err := c.do(ctx, http.MethodPost, "/api/notes", in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) UpdateNote(ctx context.Context, id, content, color string) (*model.Note, error) {
	var n model.Note
	in := map[string]string{"content": content, "color": color}
	if err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

// RecordScore saves a finished level of a mini-game.
func (c *Client) RecordScore(ctx context.Context, gameID string, level, points int) (*model.GameScore, error) {
	var s model.GameScore
	in := map[string]int{"level": level, "points": points}
	if err := c.do(ctx, http.MethodPost, "/api/games/"+url.PathEscape(gameID)+"/scores", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Progress(ctx context.Context, gameID string) (*model.GameProgress, error) {
	var p model.GameProgress
	if err := c.do(ctx, http.MethodGet, "/api/games/"+url.PathEscape(gameID)+"/highest-level", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
