// Package innstant implements the supplier client against the Innstant
// aggregation API (JSON over HTTP).
package innstant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
)

const Name = "innstant"

const dateLayout = "2006-01-02"

type Config struct {
	BaseURL string
	APIKey  string
	// Agent identifies our seat on the aggregator; sent on every request.
	Agent string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.Named("supplier.innstant"),
	}
}

func (c *Client) Name() string { return Name }

type searchRequest struct {
	Hotel    string `json:"hotel"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Adults   int    `json:"adults"`
	Currency string `json:"currency"`
}

type policyFrame struct {
	From          *string `json:"from"`
	To            *string `json:"to"`
	PenaltyAmount float64 `json:"penaltyAmount"`
	PenaltyPct    float64 `json:"penaltyPercent"`
}

type searchRoom struct {
	Name     string        `json:"name"`
	Board    string        `json:"board"`
	Price    float64       `json:"price"`
	Currency string        `json:"currency"`
	Token    string        `json:"token"`
	Policy   string        `json:"policy"`
	Deadline *string       `json:"deadline"`
	Frames   []policyFrame `json:"frames"`
}

type searchResponse struct {
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	HotelName string       `json:"hotelName"`
	Rooms     []searchRoom `json:"rooms"`
}

func (c *Client) Search(ctx context.Context, criteria supplier.SearchCriteria) ([]supplier.RoomOffer, error) {
	req := searchRequest{
		Hotel:    criteria.HotelCode,
		CheckIn:  criteria.CheckIn.Format(dateLayout),
		CheckOut: criteria.CheckOut.Format(dateLayout),
		Adults:   criteria.Adults,
		Currency: criteria.Currency,
	}
	if req.Adults <= 0 {
		req.Adults = 2
	}

	var resp searchResponse
	if err := c.post(ctx, "/hotels/search", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("innstant search: %s", resp.Message)
	}

	offers := make([]supplier.RoomOffer, 0, len(resp.Rooms))
	for _, room := range resp.Rooms {
		offers = append(offers, supplier.RoomOffer{
			Supplier:  Name,
			HotelCode: criteria.HotelCode,
			HotelName: firstNonEmpty(resp.HotelName, criteria.HotelName),
			Category:  room.Name,
			Board:     room.Board,
			Price:     room.Price,
			Currency:  firstNonEmpty(room.Currency, criteria.Currency),
			Token:     room.Token,
			Policy:    toPolicy(room),
		})
	}
	return offers, nil
}

type holdRequest struct {
	Token string `json:"token"`
}

type holdResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Token    string  `json:"holdToken"`
	Price    float64 `json:"price"`
	Deadline *string `json:"deadline"`
}

func (c *Client) Hold(ctx context.Context, offer supplier.RoomOffer) (*supplier.HoldResult, error) {
	var resp holdResponse
	if err := c.post(ctx, "/hotels/hold", holdRequest{Token: offer.Token}, &resp); err != nil {
		return nil, err
	}
	result := &supplier.HoldResult{
		Success:  resp.Status == "ok",
		Token:    resp.Token,
		Price:    resp.Price,
		Deadline: parseTimePtr(resp.Deadline),
		Error:    resp.Message,
	}
	if result.Success && result.Price == 0 {
		result.Price = offer.Price
	}
	return result, nil
}

type confirmResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

func (c *Client) Confirm(ctx context.Context, holdToken string) (*supplier.ConfirmResult, error) {
	var resp confirmResponse
	if err := c.post(ctx, "/hotels/confirm", holdRequest{Token: holdToken}, &resp); err != nil {
		return nil, err
	}
	return &supplier.ConfirmResult{
		Success:         resp.Status == "ok",
		ConfirmationRef: resp.Reference,
		Error:           resp.Message,
	}, nil
}

type cancelRequest struct {
	Reference string `json:"reference"`
}

type cancelResponse struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	CancellationID string  `json:"cancellationId"`
	Refund         float64 `json:"refund"`
	Fee            float64 `json:"fee"`
}

func (c *Client) Cancel(ctx context.Context, confirmationRef string) (*supplier.CancelResult, error) {
	var resp cancelResponse
	if err := c.post(ctx, "/hotels/cancel", cancelRequest{Reference: confirmationRef}, &resp); err != nil {
		return nil, err
	}
	return &supplier.CancelResult{
		Success:        resp.Status == "ok",
		CancellationID: resp.CancellationID,
		RefundAmount:   resp.Refund,
		Fee:            resp.Fee,
		Error:          resp.Message,
	}, nil
}

type statusResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	BookingState string `json:"bookingState"`
	Reference    string `json:"reference"`
}

func (c *Client) GetStatus(ctx context.Context, confirmationRef string) (*supplier.BookingStatus, error) {
	var resp statusResponse
	if err := c.post(ctx, "/hotels/status", cancelRequest{Reference: confirmationRef}, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("innstant status: %s", resp.Message)
	}

	state := supplier.StateUnknown
	switch resp.BookingState {
	case "confirmed":
		state = supplier.StateConfirmed
	case "cancelled":
		state = supplier.StateCancelled
	}
	return &supplier.BookingStatus{
		State:           state,
		ConfirmationRef: resp.Reference,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("aether-application-key", c.cfg.APIKey)
	req.Header.Set("aether-agent", c.cfg.Agent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("innstant %s: unexpected status code %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toPolicy(room searchRoom) supplier.CancellationPolicy {
	policy := supplier.CancellationPolicy{
		Type:     room.Policy,
		Deadline: parseTimePtr(room.Deadline),
	}
	for _, frame := range room.Frames {
		policy.Frames = append(policy.Frames, supplier.PolicyFrame{
			From: parseTimePtr(frame.From),
			To:   parseTimePtr(frame.To),
			Penalty: supplier.Penalty{
				Amount:  frame.PenaltyAmount,
				Percent: frame.PenaltyPct,
			},
		})
	}
	return policy
}

func parseTimePtr(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", dateLayout} {
		if parsed, err := time.Parse(layout, *value); err == nil {
			return &parsed
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
