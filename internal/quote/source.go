// Package quote polls a snapshot feed for live quotes and extrapolates the
// partial-day volume and amount to a full day.
package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bktrader/internal/model"
	"bktrader/internal/reconcile"
	"bktrader/internal/session"
)

// Estimate is one live record with full-day predictions.
type Estimate struct {
	Live      reconcile.Live
	UpdatedAt time.Time
	Ratio     float64
	RawVolume float64
	RawAmount float64
}

// Source fetches snapshots and serves reconciled quotes from the latest one.
// It is not safe for concurrent use.
type Source struct {
	cfg        FeedConfig
	client     *http.Client
	limiter    *rate.Limiter
	estimator  session.Estimator
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	now        func() time.Time

	snapshot map[uint32]Estimate
	preopen  map[uint32]time.Time
}

// NewSource builds a source for cfg. Pass logger nil to use slog.Default().
func NewSource(cfg FeedConfig, est session.Estimator, rec *reconcile.Reconciler, logger *slog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feed config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		estimator:  est,
		reconciler: rec,
		logger:     logger,
		now:        time.Now,
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return s, nil
}

// Update fetches one snapshot and replaces the previous one. Records taken
// before the session opened are left out of the result and remembered as pre-open.
// A payload whose records all fail to parse is a decode error.
func (s *Source) Update(ctx context.Context) ([]Estimate, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(body, s.cfg.RecordsPath)
	if err != nil {
		return nil, &TransportError{Op: "decode", URL: s.cfg.URL, Err: err}
	}

	fetchedAt := s.now()
	snapshot := make(map[uint32]Estimate, len(records))
	preopen := make(map[uint32]time.Time)
	var skipped int
	var lastErr error
	for _, r := range records {
		q, updatedAt, err := s.parse(r, fetchedAt)
		if err != nil {
			s.logger.Debug("skip feed record", "error", err)
			skipped++
			lastErr = err
			continue
		}
		ratio := s.estimator.Ratio(updatedAt)
		if ratio == 0 {
			preopen[q.Code] = updatedAt
			continue
		}
		est := Estimate{
			Live:      q,
			UpdatedAt: updatedAt,
			Ratio:     ratio,
			RawVolume: q.Volume,
			RawAmount: q.Amount,
		}
		est.Live.Volume = q.Volume * s.cfg.VolumeMultiplier / ratio
		est.Live.Amount = q.Amount / ratio
		snapshot[q.Code] = est
	}
	if skipped > 0 {
		if skipped == len(records) {
			return nil, &TransportError{Op: "decode", URL: s.cfg.URL,
				Err: fmt.Errorf("none of %d records parsed, last: %w", skipped, lastErr)}
		}
		s.logger.Warn("feed records skipped", "skipped", skipped, "records", len(records), "last_error", lastErr)
	}
	s.snapshot, s.preopen = snapshot, preopen

	out := make([]Estimate, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Live.Code < out[j].Live.Code })
	s.logger.Debug("feed snapshot", "records", len(records), "quotes", len(out), "preopen", len(preopen))
	return out, nil
}

// GetQuote reconciles the latest snapshot entry of code onto the stored
// adjustment scale.
func (s *Source) GetQuote(ctx context.Context, code uint32) (model.Bar, error) {
	if at, ok := s.preopen[code]; ok {
		return model.Bar{}, fmt.Errorf("code %d at %s: %w", code, at.Format(time.TimeOnly), ErrPreOpen)
	}
	est, ok := s.snapshot[code]
	if !ok {
		return model.Bar{}, fmt.Errorf("code %d: %w", code, ErrNotInSnapshot)
	}
	return s.reconciler.Reconcile(ctx, est.Live)
}

// Quote is the outcome for one code of GetQuotes.
type Quote struct {
	Code uint32
	Bar  model.Bar
	Err  error // ErrPreOpen, ErrNotInSnapshot, store.ErrNoHistory or reconcile.ErrBadHistory
}

// GetQuotes reconciles many codes from the latest snapshot with one store
// connection. Per-code failures land in Quote.Err; the error return is kept
// for store failures that abort the whole batch.
func (s *Source) GetQuotes(ctx context.Context, codes []uint32) ([]Quote, error) {
	out := make([]Quote, len(codes))
	var lives []reconcile.Live
	var slots []int
	for i, code := range codes {
		out[i].Code = code
		if at, ok := s.preopen[code]; ok {
			out[i].Err = fmt.Errorf("code %d at %s: %w", code, at.Format(time.TimeOnly), ErrPreOpen)
			continue
		}
		est, ok := s.snapshot[code]
		if !ok {
			out[i].Err = fmt.Errorf("code %d: %w", code, ErrNotInSnapshot)
			continue
		}
		lives = append(lives, est.Live)
		slots = append(slots, i)
	}
	results, err := s.reconciler.ReconcileAll(ctx, lives)
	if err != nil {
		return nil, err
	}
	for j, r := range results {
		out[slots[j]].Bar, out[slots[j]].Err = r.Bar, r.Err
	}
	return out, nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(), nil)
	if err != nil {
		return nil, &TransportError{Op: "request", URL: s.cfg.URL, Err: err}
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "get", URL: s.cfg.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "get", URL: s.cfg.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read", URL: s.cfg.URL, Err: err}
	}
	return body, nil
}

func (s *Source) requestURL() string {
	v := url.Values{}
	for k, p := range s.cfg.Params {
		v.Set(k, p)
	}
	if s.cfg.FieldsParam != "" {
		keys := make([]string, 0, len(s.cfg.Fields))
		for k := range s.cfg.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		v.Set(s.cfg.FieldsParam, strings.Join(keys, ","))
	}
	if s.cfg.TimestampParam != "" {
		v.Set(s.cfg.TimestampParam, strconv.FormatInt(s.now().UnixMilli(), 10))
	}
	if len(v) == 0 {
		return s.cfg.URL
	}
	sep := "?"
	if strings.Contains(s.cfg.URL, "?") {
		sep = "&"
	}
	return s.cfg.URL + sep + v.Encode()
}

// parse maps one record onto a raw quote. The update time falls back to
// fetchedAt when the feed does not carry one.
func (s *Source) parse(r record, fetchedAt time.Time) (reconcile.Live, time.Time, error) {
	var q reconcile.Live
	updatedAt := fetchedAt
	hasDate := false

	for key, field := range s.cfg.Fields {
		v, present := r[key]
		if !present {
			continue
		}
		var err error
		switch field {
		case FieldCode:
			var n int64
			if n, err = integer(v); err == nil {
				if n <= 0 || n > int64(^uint32(0)) {
					err = fmt.Errorf("code %d out of range", n)
				}
				q.Code = uint32(n)
			}
		case FieldDate:
			var n int64
			if n, err = integer(v); err == nil {
				q.Dt, err = model.DayIndexFromYMD(int(n))
				hasDate = err == nil
			}
			if errors.Is(err, errMissingValue) {
				err = nil
			}
		case FieldUpdateTime:
			var n int64
			if n, err = integer(v); err == nil && n > 0 {
				updatedAt = time.Unix(n, 0)
			}
			if errors.Is(err, errMissingValue) {
				err = nil
			}
		case FieldIOPV:
			q.IOPV, err = number(v)
			if errors.Is(err, errMissingValue) {
				q.IOPV, err = 0, nil
			}
		case FieldPreclose:
			q.Preclose, err = number(v)
		case FieldOpen:
			q.Open, err = number(v)
		case FieldHigh:
			q.High, err = number(v)
		case FieldLow:
			q.Low, err = number(v)
		case FieldLast:
			q.Last, err = number(v)
		case FieldVolume:
			q.Volume, err = number(v)
		case FieldAmount:
			q.Amount, err = number(v)
		}
		if err != nil {
			return q, updatedAt, fmt.Errorf("%s (%s): %w", key, field, err)
		}
	}
	for _, f := range requiredFields {
		key, _ := s.cfg.Fields.Key(f)
		if _, ok := r[key]; !ok {
			return q, updatedAt, fmt.Errorf("%s (%s): %w", key, f, errMissingValue)
		}
	}
	if !hasDate {
		loc := s.estimator.Location
		if loc == nil {
			loc = time.Local
		}
		q.Dt = model.DayIndex(updatedAt.In(loc))
	}
	return q, updatedAt, nil
}
