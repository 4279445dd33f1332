package imager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gustycube/conjunctions/internal/circuitbreaker"
	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/extract"
	"github.com/gustycube/conjunctions/internal/httpclient"
	"github.com/gustycube/conjunctions/internal/logging"
	"github.com/gustycube/conjunctions/internal/metrics"
	"github.com/gustycube/conjunctions/internal/rate"
	"github.com/gustycube/conjunctions/internal/robots"
	"github.com/gustycube/conjunctions/internal/telemetry"
)

// Index lists the frame files an imager recorded during one hour. A
// lookup that finds nothing returns an errs.KindMissing error; any other
// failure is errs.KindUnavailable.
type Index interface {
	Files(ctx context.Context, code string, hour time.Time) ([]string, error)
}

const frameSuffix = ".pgm.gz"

// frameMatch reports whether name is a frame of code recorded during hour:
// <YYYYMMDD>_<HH><MM>_<code>*.pgm.gz
func frameMatch(name, code string, hour time.Time) bool {
	return strings.HasPrefix(name, hour.UTC().Format("20060102_15")) &&
		strings.Contains(name, "_"+code) &&
		strings.HasSuffix(name, frameSuffix)
}

func dayPath(hour time.Time) string {
	return hour.UTC().Format("2006/01/02")
}

func hourDir(hour time.Time) string {
	return fmt.Sprintf("ut%02d", hour.UTC().Hour())
}

// HTTPOptions configures an HTTPIndex.
type HTTPOptions struct {
	UserAgent     string
	RatePerSecond float64
	Burst         int
	MaxElapsed    time.Duration
	RetryInterval time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	Client        *http.Client
	Log           *logging.Logger
}

func (o *HTTPOptions) setDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = "ConjunctionFinder/1.0"
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.MaxElapsed == 0 {
		o.MaxElapsed = 30 * time.Second
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = time.Hour
	}
	if o.Log == nil {
		o.Log = logging.Nop()
	}
}

// HTTPIndex walks the <YYYY>/<MM>/<DD>/<loc>*/ut<HH>/ directory listings
// served by the imager data host.
type HTTPIndex struct {
	base     *url.URL
	opts     HTTPOptions
	client   *httpclient.ResilientClient
	limiter  *rate.PerHost
	robots   *robots.Cache
	listings *expirable.LRU[string, []extract.Entry]
	log      *logging.Logger
}

var errNotFound = errors.New("not found")

func NewHTTPIndex(base string, opts HTTPOptions) (*HTTPIndex, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid index url %q", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	opts.setDefaults()
	log := opts.Log
	client := httpclient.NewResilientClient(opts.Client, opts.UserAgent, func(host string, from, to circuitbreaker.State) {
		metrics.BreakerTransitions.WithLabelValues(host, to.String()).Inc()
		log.Warnw("index circuit breaker", "host", host, "from", from.String(), "to", to.String())
	})
	return &HTTPIndex{
		base:     u,
		opts:     opts,
		client:   client,
		limiter:  rate.New(opts.RatePerSecond, opts.Burst),
		robots:   robots.NewCache(client, opts.UserAgent),
		listings: expirable.NewLRU[string, []extract.Entry](opts.CacheSize, nil, opts.CacheTTL),
		log:      log,
	}, nil
}

func (x *HTTPIndex) Files(ctx context.Context, code string, hour time.Time) ([]string, error) {
	const op = "imager index"
	code = strings.ToLower(code)
	ctx, span := telemetry.Tracer("imager").Start(ctx, "Files")
	defer span.End()
	span.SetAttributes(attribute.String("imager", code), attribute.String("hour", hour.UTC().Format(time.RFC3339)))

	dayURL := x.base.ResolveReference(&url.URL{Path: dayPath(hour) + "/"})
	var found []string
	err := func() error {
		days, err := x.list(ctx, dayURL)
		if err != nil {
			return err
		}
		for _, d := range days {
			if !d.Dir || !strings.HasPrefix(strings.ToLower(d.Name), code) {
				continue
			}
			hourURL := d.URL.ResolveReference(&url.URL{Path: hourDir(hour) + "/"})
			frames, err := x.list(ctx, hourURL)
			if errors.Is(err, errNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			for _, f := range frames {
				if !f.Dir && frameMatch(f.Name, code, hour) {
					found = append(found, f.URL.String())
				}
			}
		}
		return nil
	}()

	switch {
	case errors.Is(err, errNotFound):
		metrics.IndexRequests.WithLabelValues("missing").Inc()
		return nil, errs.Missingf(op, dayURL.String(), "no listing for %s", code)
	case err != nil:
		metrics.IndexRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var e *errs.Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, errs.Unavailable(op, dayURL.String(), err)
	case len(found) == 0:
		metrics.IndexRequests.WithLabelValues("missing").Inc()
		return nil, errs.Missingf(op, dayURL.String(), "no %s frames for hour %02d", code, hour.UTC().Hour())
	}
	metrics.IndexRequests.WithLabelValues("found").Inc()
	span.SetAttributes(attribute.Int("files", len(found)))
	return found, nil
}

// list fetches and parses one directory listing. A 404 yields errNotFound.
func (x *HTTPIndex) list(ctx context.Context, dir *url.URL) ([]extract.Entry, error) {
	key := dir.String()
	if v, ok := x.listings.Get(key); ok {
		return v, nil
	}
	if !x.robots.Allowed(ctx, dir) {
		metrics.RobotsBlocks.Inc()
		return nil, errs.Unavailable("imager index", key, errors.New("disallowed by robots.txt"))
	}

	var body []byte
	op := func() error {
		if err := x.limiter.Wait(ctx, dir.Host); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := x.client.GetWithContext(ctx, key)
		if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(errNotFound)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("bad status: %d", resp.StatusCode))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = x.opts.RetryInterval
	bo.MaxElapsedTime = x.opts.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	links, err := extract.ParseLinks(dir, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Malformed("imager index", key, err)
	}
	entries := extract.Children(dir, links)
	x.listings.Add(key, entries)
	x.log.Debugw("listed index directory", "url", key, "entries", len(entries))
	return entries, nil
}

// DirIndex looks frames up in a local mirror laid out like the remote
// index.
type DirIndex struct {
	Root string
}

func (x DirIndex) Files(ctx context.Context, code string, hour time.Time) ([]string, error) {
	const op = "imager index"
	code = strings.ToLower(code)
	dayDir := filepath.Join(x.Root, filepath.FromSlash(dayPath(hour)))
	entries, err := os.ReadDir(dayDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.Missingf(op, dayDir, "no mirror directory")
	}
	if err != nil {
		return nil, errs.Unavailable(op, dayDir, err)
	}

	var found []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errs.Unavailable(op, dayDir, err)
		}
		if !e.IsDir() || !strings.HasPrefix(strings.ToLower(e.Name()), code) {
			continue
		}
		dir := filepath.Join(dayDir, e.Name(), hourDir(hour))
		frames, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errs.Unavailable(op, dir, err)
		}
		for _, f := range frames {
			if !f.IsDir() && frameMatch(f.Name(), code, hour) {
				found = append(found, filepath.Join(dir, f.Name()))
			}
		}
	}
	if len(found) == 0 {
		return nil, errs.Missingf(op, path.Join(dayPath(hour), code), "no %s frames for hour %02d", code, hour.UTC().Hour())
	}
	sort.Strings(found)
	return found, nil
}
