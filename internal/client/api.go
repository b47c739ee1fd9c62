// Package client uploads files to the transfer server in resumable chunks and
// downloads published artifacts with resumable range requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/anthanhphan/go-resumable-transfer/pkg/transferapi"
)

// API is a thin typed client of the transfer HTTP API. Requests that fail
// transiently are counted by a circuit breaker shared by every transfer.
type API struct {
	baseURL string
	ownerID string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

type APIOption func(*API)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

// WithOwnerID sends the owner reference on init.
func WithOwnerID(id string) APIOption {
	return func(a *API) { a.ownerID = id }
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) APIOption {
	return func(a *API) { a.breaker = cb }
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "transfer-api",
			IsFailure: IsTransient,
		})
	}
	return a
}

func (a *API) Init(ctx context.Context, req transferapi.InitRequest) (*transferapi.InitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out transferapi.InitResponse
	err = a.do(ctx, http.MethodPost, transferapi.BasePath+"/uploads", bytes.NewReader(body), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
		if a.ownerID != "" {
			r.Header.Set(transferapi.HeaderOwnerID, a.ownerID)
		}
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) PutChunk(ctx context.Context, sessionID string, index int, data []byte) (*transferapi.ChunkResponse, error) {
	var out transferapi.ChunkResponse
	err := a.do(ctx, http.MethodPut, transferapi.ChunkPath(sessionID, index), bytes.NewReader(data), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/octet-stream")
		r.ContentLength = int64(len(data))
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Status(ctx context.Context, sessionID string) (*transferapi.StatusResponse, error) {
	var out transferapi.StatusResponse
	if err := a.do(ctx, http.MethodGet, transferapi.UploadPath(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Cancel(ctx context.Context, sessionID string) (*transferapi.MessageResponse, error) {
	var out transferapi.MessageResponse
	if err := a.do(ctx, http.MethodDelete, transferapi.UploadPath(sessionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ArtifactInfo is what a HEAD request reveals about a published artifact.
type ArtifactInfo struct {
	Size          int64
	ContentType   string
	AcceptsRanges bool
}

func (a *API) Head(ctx context.Context, ref string) (*ArtifactInfo, error) {
	var info *ArtifactInfo
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.send(ctx, http.MethodHead, transferapi.FilePath(ref), nil, nil)
		if err != nil {
			return err
		}
		defer drain(resp)
		if resp.StatusCode != http.StatusOK {
			return &transferapi.APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		}

		size := resp.ContentLength
		if v := resp.Header.Get("X-Artifact-Size"); v != "" {
			if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				size = n
			}
		}
		if size < 0 {
			return fmt.Errorf("transfer api: artifact %s has unknown size", ref)
		}
		info = &ArtifactInfo{
			Size:          size,
			ContentType:   resp.Header.Get("Content-Type"),
			AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		}
		return nil
	})
	return info, err
}

// Download opens the artifact. With end < 0 and start == 0 the whole file is
// requested; otherwise the inclusive range [start, end] (end < 0 means to EOF).
// The caller closes the returned body.
func (a *API) Download(ctx context.Context, ref string, start, end int64) (io.ReadCloser, *ContentRange, error) {
	var (
		body io.ReadCloser
		cr   *ContentRange
	)
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		ranged := start > 0 || end >= 0
		resp, err := a.send(ctx, http.MethodGet, transferapi.FilePath(ref), nil, func(r *http.Request) {
			if !ranged {
				return
			}
			if end >= 0 {
				r.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
			} else {
				r.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
			}
		})
		if err != nil {
			return err
		}

		switch {
		case !ranged && resp.StatusCode == http.StatusOK:
			body = resp.Body
			return nil
		case ranged && resp.StatusCode == http.StatusPartialContent:
			parsed, perr := parseContentRange(resp.Header.Get("Content-Range"))
			if perr != nil {
				drain(resp)
				return perr
			}
			body, cr = resp.Body, parsed
			return nil
		default:
			defer drain(resp)
			return decodeError(resp)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return body, cr, nil
}

// ContentRange is a parsed "bytes start-end/size" response header.
type ContentRange struct {
	Start int64
	End   int64
	Size  int64
}

func parseContentRange(v string) (*ContentRange, error) {
	var cr ContentRange
	if _, err := fmt.Sscanf(v, "bytes %d-%d/%d", &cr.Start, &cr.End, &cr.Size); err != nil {
		return nil, fmt.Errorf("transfer api: malformed Content-Range %q: %w", v, err)
	}
	return &cr, nil
}

// do runs a JSON request through the circuit breaker.
func (a *API) do(ctx context.Context, method, path string, body io.Reader, prepare func(*http.Request), out any) error {
	return a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.send(ctx, method, path, body, prepare)
		if err != nil {
			return err
		}
		defer drain(resp)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return decodeError(resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("transfer api: failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	})
}

func (a *API) send(ctx context.Context, method, path string, body io.Reader, prepare func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if prepare != nil {
		prepare(req)
	}
	return a.http.Do(req)
}

func decodeError(resp *http.Response) error {
	apiErr := &transferapi.APIError{StatusCode: resp.StatusCode, Message: resp.Status}

	var payload transferapi.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
		apiErr.Code = payload.Code
		if payload.Error != "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

// IsTransient reports whether a failed request may succeed if retried:
// network failures, timeouts, 5xx, 429 and an open circuit.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *transferapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// HasCode reports whether err is an API error with the given code.
func HasCode(err error, code transferapi.ErrorCode) bool {
	var apiErr *transferapi.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
