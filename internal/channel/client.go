package channel

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
)

// Target scopes one push: which booking/opportunity it belongs to and how the
// hotel is addressed on the channel.
type Target struct {
	BookingID     *snowflake.ID
	OpportunityID *snowflake.ID
	HotelID       snowflake.ID
	Mapping       domain.ChannelMapping
	From          time.Time
	To            time.Time
}

// Outcome reports one logical push after retries.
type Outcome struct {
	Success  bool
	Attempts int
	Response string
	Err      error
}

type Client struct {
	cfg      config.ChannelConfig
	http     *http.Client
	pushLogs domain.PushLogRepository
	genID    *snowflake.Node
	log      *zap.Logger
}

func NewClient(cfg config.Config, pushLogs domain.PushLogRepository, genID *snowflake.Node, log *zap.Logger) *Client {
	return &Client{
		cfg:      cfg.Channel,
		http:     &http.Client{Timeout: 60 * time.Second},
		pushLogs: pushLogs,
		genID:    genID,
		log:      log.Named("channel"),
	}
}

func (c *Client) auth() authBlock {
	return authBlock{Username: c.cfg.Username, Password: c.cfg.Password}
}

// PushAvailability publishes the number of rooms open for sale for the
// target's date range, retrying with exponential backoff on failure. Every
// attempt, including each retry, lands in the push log.
func (c *Client) PushAvailability(ctx context.Context, target Target, rooms int) Outcome {
	message := buildAvailability(c.auth(), target, rooms)
	return c.deliver(ctx, target, domain.PushTypeAvailability, message, nil)
}

// PushRate publishes the sell price for the target's date range.
func (c *Client) PushRate(ctx context.Context, target Target, price float64, currency string) Outcome {
	message := buildRate(c.auth(), target, price, currency)
	return c.deliver(ctx, target, domain.PushTypeRate, message, &price)
}

// PushBooking is the availability-then-rate composite. Rate is not attempted
// when availability fails; there is no point pricing a room the channel does
// not know is open.
func (c *Client) PushBooking(ctx context.Context, target Target, rooms int, price float64, currency string) (availability, rate Outcome) {
	availability = c.PushAvailability(ctx, target, rooms)
	if !availability.Success {
		return availability, Outcome{}
	}
	rate = c.PushRate(ctx, target, price, currency)
	return availability, rate
}

// CloseBooking takes the room off sale: the availability-then-rate composite
// with availability forced to zero.
func (c *Client) CloseBooking(ctx context.Context, target Target, price float64, currency string) (availability, rate Outcome) {
	return c.PushBooking(ctx, target, 0, price, currency)
}

// BatchItem couples a push target with its price for batch processing.
type BatchItem struct {
	Target   Target
	Rooms    int
	Price    float64
	Currency string
}

type BatchResult struct {
	Succeeded int
	Failed    int
	Failures  []snowflake.ID
}

// PushBatch processes items in fixed-size chunks with a small delay between
// items and a larger one between chunks, so the channel's rate limits hold.
func (c *Client) PushBatch(ctx context.Context, items []BatchItem) BatchResult {
	chunkSize := c.cfg.BatchChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}

	var result BatchResult
	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}

		for i, item := range items[start:end] {
			if ctx.Err() != nil {
				return result
			}

			availability, rate := c.PushBooking(ctx, item.Target, item.Rooms, item.Price, item.Currency)
			if availability.Success && rate.Success {
				result.Succeeded++
			} else {
				result.Failed++
				if item.Target.BookingID != nil {
					result.Failures = append(result.Failures, *item.Target.BookingID)
				}
			}

			if start+i+1 < len(items) {
				sleepCtx(ctx, c.cfg.BatchItemDelay)
			}
		}

		if end < len(items) {
			sleepCtx(ctx, c.cfg.BatchChunkDelay)
		}
	}
	return result
}

// deliver performs the network call under the retry policy. Each attempt is
// logged on its own; log write failures are swallowed so they can never mask
// the push result.
func (c *Client) deliver(ctx context.Context, target Target, pushType string, message any, pushedPrice *float64) Outcome {
	payload, err := xml.Marshal(message)
	if err != nil {
		return Outcome{Err: fmt.Errorf("marshal %s message: %w", pushType, err)}
	}

	correlationID := uuid.NewString()
	policy := backoff.WithContext(c.retryPolicy(), ctx)

	attempt := 0
	var lastResponse string
	var lastErr error

	operation := func() error {
		started := time.Now()
		response, attemptErr := c.post(ctx, payload)
		elapsed := time.Since(started)

		lastResponse = response
		lastErr = attemptErr
		c.record(target, pushType, correlationID, string(payload), response, pushedPrice, attemptErr, attempt, elapsed)
		attempt++

		return attemptErr
	}

	err = backoff.Retry(operation, policy)
	outcome := Outcome{
		Success:  err == nil,
		Attempts: attempt,
		Response: lastResponse,
		Err:      lastErr,
	}
	if !outcome.Success {
		c.log.Warn("push failed after retries",
			zap.String("push_type", pushType),
			zap.String("correlation_id", correlationID),
			zap.Int("attempts", attempt),
			zap.Error(lastErr),
		)
	}
	return outcome
}

func (c *Client) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBackoff
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = time.Second
	}
	policy.Multiplier = 2
	policy.MaxInterval = c.cfg.RetryMaxWait
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 30 * time.Second
	}
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	retries := c.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(policy, uint64(retries))
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return string(body), fmt.Errorf("channel returned status %d", resp.StatusCode)
	}

	parsed, err := parseResponse(body)
	if err != nil {
		return string(body), err
	}
	if !parsed.ok() {
		return string(body), fmt.Errorf("channel rejected push: code=%s %s", parsed.errorCode(), parsed.Error.Message)
	}
	return string(body), nil
}

func (c *Client) record(target Target, pushType, correlationID, request, response string, pushedPrice *float64, attemptErr error, retryCount int, elapsed time.Duration) {
	entry := &domain.PushLog{
		ID:            c.genID.Generate(),
		BookingID:     target.BookingID,
		OpportunityID: target.OpportunityID,
		HotelID:       target.HotelID,
		PushType:      pushType,
		CorrelationID: correlationID,
		RequestBody:   request,
		Success:       attemptErr == nil,
		RetryCount:    retryCount,
		ProcessingMs:  elapsed.Milliseconds(),
		PushedPrice:   pushedPrice,
		Metadata: datatypes.JSONMap{
			"channel_hotel_code": target.Mapping.ChannelHotelCode,
		},
	}
	if response != "" {
		entry.ResponseBody = &response
	}
	if attemptErr != nil {
		message := attemptErr.Error()
		entry.Error = &message
	}

	// Log writes are best-effort; a failed insert must not affect the push.
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.pushLogs.Insert(logCtx, entry); err != nil {
		c.log.Warn("push log write failed",
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
