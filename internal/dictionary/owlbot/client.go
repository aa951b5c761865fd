package owlbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/term"
)

const (
	DefaultBaseURL        = "https://owlbot.info/api/v4"
	DefaultTimeout        = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateLimit is the number of requests per second. Zero disables throttling.
	RateLimit float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Client looks words up in the Owlbot dictionary API.
type Client struct {
	httpClient *resty.Client
	config     Config
	validate   *validator.Validate
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ dictionary.Client = (*Client)(nil)

func NewClient(config Config, logger *slog.Logger) *Client {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(config.BaseURL)
	httpClient.SetHeader("Accept", "application/json")
	if config.Token != "" {
		httpClient.SetHeader("Authorization", "Token "+config.Token)
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Client{
		httpClient: httpClient,
		config:     config,
		validate:   newValidator(),
		limiter:    limiter,
		logger:     logger.With("component", "owlbot"),
	}
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// Lookup fetches searchTerm, retrying transient failures with exponential backoff.
// Not-found, malformed and rejected responses are returned after the first attempt.
func (client *Client) Lookup(ctx context.Context, searchTerm term.SearchTerm) (dictionary.WordEntry, error) {
	var (
		entry    dictionary.WordEntry
		lastErr  error
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			result, err := client.lookupOnce(ctx, searchTerm)
			if err != nil {
				lastErr = err
				if !dictionary.IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			entry = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(client.config.MaxAttempts),
		retry.Delay(client.config.InitialBackoff),
		retry.MaxDelay(client.config.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if !dictionary.IsRetryable(err) {
				return
			}
			client.logger.WarnContext(ctx, "owlbot lookup attempt failed",
				"term", searchTerm,
				"attempt", n+1,
				"error", err)
		}),
	)
	if err == nil {
		if attempts > 1 {
			client.logger.InfoContext(ctx, "owlbot lookup succeeded after retry",
				"term", searchTerm,
				"attempts", attempts)
		}
		return entry, nil
	}

	if ctx.Err() != nil {
		return dictionary.WordEntry{}, &dictionary.CancelledError{Term: string(searchTerm), Err: ctx.Err()}
	}
	if lastErr == nil {
		lastErr = err
	}
	var transient *dictionary.TransientError
	if errors.As(lastErr, &transient) {
		transient.Attempts = attempts
	}
	var malformed *dictionary.MalformedResponseError
	if errors.As(lastErr, &malformed) {
		client.logger.ErrorContext(ctx, "owlbot returned a malformed response",
			"term", searchTerm,
			"error", malformed.Err)
	}
	return dictionary.WordEntry{}, lastErr
}

func (client *Client) lookupOnce(ctx context.Context, searchTerm term.SearchTerm) (dictionary.WordEntry, error) {
	word := string(searchTerm)
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return dictionary.WordEntry{}, &dictionary.CancelledError{Term: word, Err: ctx.Err()}
			}
			return dictionary.WordEntry{}, &dictionary.TransientError{Term: word, Err: fmt.Errorf("limiter.Wait > %w", err)}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, client.config.Timeout)
	defer cancel()

	client.logger.DebugContext(ctx, "owlbot request", "term", word)
	res, err := client.httpClient.R().
		SetContext(attemptCtx).
		SetPathParam("term", word).
		Get("/dictionary/{term}")
	if err != nil {
		if ctx.Err() != nil {
			return dictionary.WordEntry{}, &dictionary.CancelledError{Term: word, Err: ctx.Err()}
		}
		return dictionary.WordEntry{}, &dictionary.TransientError{Term: word, Err: fmt.Errorf("client.R.Get > %w", err)}
	}

	status := res.StatusCode()
	switch {
	case status == http.StatusOK:
		return client.parse(word, res.Body())
	case status == http.StatusNotFound:
		return dictionary.WordEntry{}, &dictionary.NotFoundError{Term: word}
	case isTransientStatus(status):
		return dictionary.WordEntry{}, &dictionary.TransientError{
			Term:       word,
			StatusCode: status,
			Err:        fmt.Errorf("status code: %d, body: %s", status, string(res.Body())),
		}
	default:
		return dictionary.WordEntry{}, &dictionary.RejectedError{Term: word, StatusCode: status, Body: string(res.Body())}
	}
}

func (client *Client) parse(word string, body []byte) (dictionary.WordEntry, error) {
	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return dictionary.WordEntry{}, &dictionary.MalformedResponseError{Term: word, Err: fmt.Errorf("json.Unmarshal > %w", err)}
	}
	if err := client.validate.Struct(response); err != nil {
		return dictionary.WordEntry{}, &dictionary.MalformedResponseError{Term: word, Err: fmt.Errorf("validate.Struct > %w", err)}
	}
	return response.ToWordEntry(client.config.BaseURL), nil
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return status >= http.StatusInternalServerError
}
