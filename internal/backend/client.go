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
	"time"

	"tori-server/internal/session"

	"github.com/rs/zerolog/log"
)

const (
	pathRoomInfo   = "/gs/game/room"
	pathUserInfo   = "/gs/game/user"
	pathUserStatus = "/gs/game/status"
	pathResult     = "/gs/game/result"
)

// Client talks to the app backend's game-server API. It implements the
// core's StatusReporter and ResultReporter ports; failures are surfaced
// to the caller and retried by the sweep loops, never cached here.
type Client struct {
	baseURL string
	inner   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		inner:   &http.Client{Timeout: timeout},
	}
}

// RoomInfo fetches the room record behind an external room id.
func (c *Client) RoomInfo(ctx context.Context, roomID int) (*RoomInfo, error) {
	return getJSON[RoomInfo](ctx, c, pathRoomInfo, url.Values{"roomId": {strconv.Itoa(roomID)}})
}

// UserInfo fetches the user record behind an external user number.
func (c *Client) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	return getJSON[UserInfo](ctx, c, pathUserInfo, url.Values{"userNo": {userID}})
}

// ReportStatus pushes one consumption delta.
func (c *Client) ReportStatus(ctx context.Context, delta session.UserStatus) error {
	body := userStatusBody{
		UserID:      delta.UserID,
		SpentItems:  delta.SpentItems,
		SpentEnergy: delta.SpentEnergy,
	}
	if err := c.postJSON(ctx, pathUserStatus, body); err != nil {
		return err
	}
	log.Info().Int("user_id", delta.UserID).Int("spent_energy", delta.SpentEnergy).
		Msg("reported user status delta")
	return nil
}

// ReportResult pushes a finished room's final standing.
func (c *Client) ReportResult(ctx context.Context, result session.GameResult) error {
	body := gameResultBody{
		RoomID:  result.RoomID,
		UserIDs: result.UserIDs,
		First: gameResultFirst{
			UserID:     result.Winner.UserID,
			SpentItems: result.Winner.SpentItems,
			HostTime:   result.Winner.HostTime,
		},
	}
	if err := c.postJSON(ctx, pathResult, body); err != nil {
		return err
	}
	log.Info().Int("room_id", result.RoomID).Int("winner_id", result.Winner.UserID).
		Msg("reported game result")
	return nil
}

func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend %s failed with status %d", path, resp.StatusCode)
	}
	var envelope apiResponse[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Info == nil {
		return nil, fmt.Errorf("backend %s returned empty info", path)
	}
	return envelope.Info, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.inner.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend %s failed with status %d", path, resp.StatusCode)
	}
	return nil
}
