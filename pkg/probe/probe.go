// Package probe tries a list of candidate URLs in order and takes the first
// one that answers successfully.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
)

// DefaultMaxBodyBytes caps how much of a successful body is read.
const DefaultMaxBodyBytes = 16 << 20

// Options controls a probe run. The zero value sends GET with no per-attempt
// timeout and accepts any 2xx status.
type Options struct {
	Method string
	// Timeout bounds each attempt separately. Zero relies on ctx and the client.
	Timeout time.Duration
	Header  http.Header
	// Accept decides whether a status ends the search.
	Accept       func(status int) bool
	MaxBodyBytes int64
}

// Result describes the candidate that ended the search.
type Result struct {
	URL        string
	Index      int
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Is2xx is the default acceptance predicate.
func Is2xx(status int) bool {
	return status >= 200 && status < 300
}

// FirstSuccess tries each candidate in order and returns the first accepted
// response. Individual failures are swallowed; when every candidate fails the
// returned error wraps apperrors.ErrAllCandidatesFailed and the last failure.
// Cancellation of ctx stops the search and is returned as is.
func FirstSuccess(ctx context.Context, client *http.Client, candidates []string, opts Options) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", apperrors.ErrAllCandidatesFailed)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.Accept == nil {
		opts.Accept = Is2xx
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	var lastErr error
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := attempt(ctx, client, candidate, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if opts.Accept(res.StatusCode) {
			res.Index = i
			return res, nil
		}
		lastErr = &apperrors.StatusError{Op: opts.Method + " " + candidate, StatusCode: res.StatusCode}
	}

	return nil, fmt.Errorf("%w: %w", apperrors.ErrAllCandidatesFailed, lastErr)
}

func attempt(ctx context.Context, client *http.Client, target string, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &Result{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if !opts.Accept(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return res, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	res.Body = body
	return res, nil
}
