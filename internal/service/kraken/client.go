package kraken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"DWML/internal/domain/models"
	drepo "DWML/internal/domain/repository"
	apphttp "DWML/pkg/http"
	applogger "DWML/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.kraken.com"
	DefaultQuote   = "USD"
	DefaultTimeout = 10 * time.Second

	ohlcPath       = "/0/public/OHLC"
	assetPairsPath = "/0/public/AssetPairs"
)

// defaultAliases maps common tickers to Kraken's asset codes.
var defaultAliases = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// Client talks to Kraken's public REST API. Every call is bounded by the
// configured timeout and surfaces transport failures as models.ErrExternalService.
type Client struct {
	baseURL string
	quote   string
	timeout time.Duration
	aliases map[string]string
	http    *apphttp.Client
	metrics drepo.Metrics
	l       *applogger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithQuote(q string) Option {
	return func(c *Client) {
		if q != "" {
			c.quote = strings.ToUpper(q)
		}
	}
}

// WithTimeout bounds each outbound call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAliases adds or overrides ticker to asset-code mappings.
func WithAliases(m map[string]string) Option {
	return func(c *Client) {
		for k, v := range m {
			c.aliases[strings.ToUpper(k)] = strings.ToUpper(v)
		}
	}
}

func WithHTTPClient(h *apphttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithMetrics(m drepo.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		quote:   DefaultQuote,
		timeout: DefaultTimeout,
		aliases: make(map[string]string, len(defaultAliases)),
	}
	for k, v := range defaultAliases {
		c.aliases[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = apphttp.NewClient(apphttp.WithTimeout(c.timeout), apphttp.WithClientLogger(c.l))
	}
	return c
}

// Pair returns the Kraken pair name for a ticker, e.g. BTC -> XBTUSD.
func (c *Client) Pair(symbol string) string {
	s := models.NormalizeSymbol(symbol)
	if alias, ok := c.aliases[s]; ok {
		s = alias
	}
	return s + c.quote
}

// envelope is the common Kraken response shape.
type envelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// PairExists asks AssetPairs about the pair. An unknown-pair error yields (false, nil);
// any other failure is returned as models.ErrExternalService.
func (c *Client) PairExists(ctx context.Context, symbol string) (bool, error) {
	var env envelope
	if err := c.get(ctx, "asset_pairs", assetPairsPath, map[string][]string{"pair": {c.Pair(symbol)}}, &env); err != nil {
		return false, err
	}
	if err := classify(env.Error); err != nil {
		if errors.Is(err, models.ErrSymbolNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(env.Result) > 0, nil
}

// Candles fetches OHLC candles since the given time, sorted ascending by time.
func (c *Client) Candles(ctx context.Context, symbol string, since time.Time, iv drepo.Interval) ([]models.Candle, error) {
	params := map[string][]string{
		"pair":     {c.Pair(symbol)},
		"interval": {strconv.Itoa(int(iv))},
		"since":    {strconv.FormatInt(since.Unix(), 10)},
	}
	var env envelope
	if err := c.get(ctx, "ohlc", ohlcPath, params, &env); err != nil {
		return nil, err
	}
	if err := classify(env.Error); err != nil {
		return nil, fmt.Errorf("kraken ohlc %s: %w", c.Pair(symbol), err)
	}

	rows, err := ohlcRows(env.Result)
	if err != nil {
		return nil, fmt.Errorf("kraken ohlc %s: %w: %v", c.Pair(symbol), models.ErrExternalService, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		cd, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("kraken ohlc %s row %d: %w: %v", c.Pair(symbol), i, models.ErrExternalService, err)
		}
		// pre-listing periods can report a zero close, which would drag the
		// opening average toward zero and make coin counts unbounded
		if !cd.Close.IsPositive() {
			skipped++
			continue
		}
		candles = append(candles, cd)
	}
	if skipped > 0 {
		if c.metrics != nil {
			c.metrics.RecordUpstreamCall("ohlc", "zero_close_skipped")
		}
		if c.l != nil {
			c.l.Info("skipped candles without a close",
				applogger.String("pair", c.Pair(symbol)),
				applogger.Int("skipped", skipped),
				applogger.Int("kept", len(candles)),
			)
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func (c *Client) get(ctx context.Context, op, path string, params map[string][]string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, dest)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(op, outcome)
	}
	if err != nil {
		if c.l != nil {
			c.l.Warn("kraken request failed",
				applogger.String("op", op),
				applogger.String("outcome", outcome),
				applogger.Duration("duration_ms", time.Since(start)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("kraken %s: %w: %v", op, models.ErrExternalService, err)
	}
	return nil
}

// classify maps Kraken's error strings to error kinds.
func classify(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	joined := strings.Join(errs, "; ")
	lower := strings.ToLower(joined)
	if strings.Contains(lower, "unknown asset pair") || strings.Contains(lower, "instrument not found") {
		return fmt.Errorf("%w: %s", models.ErrSymbolNotFound, joined)
	}
	return fmt.Errorf("%w: %s", models.ErrExternalService, joined)
}

// ohlcRows extracts the candle array from a result that also carries a "last" cursor.
func ohlcRows(result map[string]json.RawMessage) ([][]json.RawMessage, error) {
	for key, raw := range result {
		if key == "last" {
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return rows, nil
	}
	return nil, errors.New("result has no pair data")
}

// parseCandle reads [time, open, high, low, close, vwap, volume, count].
func parseCandle(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 7 {
		return models.Candle{}, fmt.Errorf("want at least 7 fields, got %d", len(row))
	}
	var ts json.Number
	if err := decodeNumber(row[0], &ts); err != nil {
		return models.Candle{}, fmt.Errorf("time: %w", err)
	}
	sec, err := ts.Int64()
	if err != nil {
		return models.Candle{}, fmt.Errorf("time: %w", err)
	}

	fields := make([]decimal.Decimal, 6)
	for i := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = v
	}

	cd := models.Candle{
		Time:   time.Unix(sec, 0).UTC(),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		VWAP:   fields[4],
		Volume: fields[5],
	}
	if len(row) > 7 {
		var n json.Number
		if err := decodeNumber(row[7], &n); err == nil {
			cd.Count, _ = n.Int64()
		}
	}
	return cd, nil
}

func decodeNumber(raw json.RawMessage, n *json.Number) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(n)
}

var _ drepo.Exchange = (*Client)(nil)
