package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

const allowAllRobots = "User-agent: *\nAllow: /"

// robotsProbeBackoff is the pause before each robots.txt retry.
var robotsProbeBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport retries robots.txt probes that time out and, once retries
// are spent, answers with an allow-all policy so the article fetch proceeds.
// Article requests pass straight through.
type robotsTransport struct {
	base      http.RoundTripper
	logger    *zap.Logger
	pauser    crawler.Pauser
	fallbacks atomic.Int64
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("article roundtrip: %w", err)
		}
		return resp, nil
	}
	return t.probe(req)
}

func (t *robotsTransport) probe(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= len(robotsProbeBackoff); attempt++ {
		if attempt > 0 {
			if err := req.Context().Err(); err != nil {
				return nil, fmt.Errorf("robots probe cancelled: %w", err)
			}
			t.pause(req.Context(), robotsProbeBackoff[attempt-1])
		}
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isTimeout(err) {
			return nil, fmt.Errorf("robots probe: %w", err)
		}
		lastErr = err
	}

	t.fallbacks.Add(1)
	if t.logger != nil {
		t.logger.Warn("robots.txt unreachable, allowing all",
			zap.String("host", req.URL.Host), zap.Error(lastErr))
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        make(http.Header),
		Request:       req,
	}, nil
}

func (t *robotsTransport) pause(ctx context.Context, d time.Duration) {
	if t.pauser == nil {
		crawler.TimerPauser{}.Pause(ctx, d)
		return
	}
	t.pauser.Pause(ctx, d)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
