// Package storage archives finished production artifacts in a Supabase Storage bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/bobarin/director/internal/retry"
	"github.com/google/uuid"
)

const (
	uploadTimeout  = 60 * time.Second // per attempt
	uploadAttempts = 5
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
	retryJitter    = 0.25
)

type Storage struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
	retryBase  time.Duration
}

func New(url, serviceKey, bucket string) *Storage {
	return &Storage{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		Bucket:     bucket,
		retryBase:  baseRetryDelay,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// statusError is a non-2xx answer from the storage API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("storage returned status %d: %s", e.status, e.body)
}

// Upload writes an object, overwriting any previous version (x-upsert), so a
// production can be archived again after SEO or thumbnail changes.
func (s *Storage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, objectPath)

	_, err := retry.Do(ctx, s.policy(objectPath), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.put(ctx, endpoint, data, contentType)
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

func (s *Storage) put(ctx context.Context, endpoint string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return &statusError{status: resp.StatusCode, body: string(body)}
}

// policy backs off base * 2^attempt (capped at 30s) plus up to 25% jitter.
func (s *Storage) policy(objectPath string) retry.Policy {
	return retry.Policy{
		Name:         "storage upload " + objectPath,
		MaxAttempts:  uploadAttempts,
		InitialDelay: s.retryBase,
		MaxDelay:     maxRetryDelay,
		Jitter:       retryJitter,
		Retryable:    isRetryable,
	}
}

// GetPublicURL returns the public URL for an object.
func (s *Storage) GetPublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, objectPath)
}

// ProductionPath places a file under the production's folder.
func (s *Storage) ProductionPath(productionID uuid.UUID, filename string) string {
	return path.Join("productions", productionID.String(), filename)
}

// isRetryable accepts throttling, gateway errors and dropped connections.
// 4xx answers other than 408/429 are final.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
