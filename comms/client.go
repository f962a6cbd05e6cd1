package comms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

const (
	DEFAULT_TIMEOUT = time.Second
	API_CONSTRAINT  = "~1.1"
)

// HTTPError is returned when the motor server answers with anything but a 2xx.
type HTTPError struct {
	Code    int
	Message string
}

func (err HTTPError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("motor server returned %d", err.Code)
	}
	return fmt.Sprintf("motor server returned %d: %s", err.Code, err.Message)
}

// IsTimeout reports whether err was caused by the request running out of time.
func IsTimeout(err error) bool {
	cause := errors.Cause(err)
	if cause == context.DeadlineExceeded {
		return true
	}
	var netErr net.Error
	return errors.As(cause, &netErr) && netErr.Timeout()
}

// IsHTTP reports whether err came from a response rather than the transport.
func IsHTTP(err error) bool {
	_, ok := errors.Cause(err).(HTTPError)
	return ok
}

// Client talks to a motor server over its HTTP surface.
type Client struct {
	base   string
	client http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: http.Client{Timeout: timeout},
	}
}

func (c *Client) Base() string {
	return c.base
}

func (c *Client) Motor(ctx context.Context, id, action string) (resp CommandResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/motor/"+id, &MotorRequest{Action: action}, &resp)
	return
}

func (c *Client) StopAll(ctx context.Context) (resp StopAllResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/stop_all", nil, &resp)
	return
}

func (c *Client) Status(ctx context.Context) (resp StatusPayload, err error) {
	err = c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return
}

func (c *Client) Arm(ctx context.Context) (resp CommandResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/arm", nil, &resp)
	return
}

// Shutdown asks the server to stop every motor and exit. The server may go away before it
// answers, so callers usually only log the error.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/shutdown", nil, nil)
}

// VersionError means the server answered but does not speak a compatible API.
type VersionError struct {
	Version    string
	Constraint string
}

func (err VersionError) Error() string {
	if err.Version == "" {
		return fmt.Sprintf("motor server did not report a version, require %s", err.Constraint)
	}
	return fmt.Sprintf("unable to use motor server: received version %s - require %s", err.Version, err.Constraint)
}

// CheckVersion fetches the server status and checks its API version against constraint.
// Transport failures are returned as they are, incompatible servers as a VersionError.
func (c *Client) CheckVersion(ctx context.Context, constraint string) (version string, err error) {
	semVerConstraint, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid version constraint %q", constraint)
	}

	status, err := c.Status(ctx)
	if err != nil {
		return
	}
	version = status.Version

	semVer, err := semver.NewVersion(version)
	if err != nil || !semVerConstraint.Check(semVer) {
		return version, VersionError{Version: version, Constraint: constraint}
	}
	return version, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "unable to encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errors.Wrap(err, "unable to generate request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload ErrorPayload
		json.Unmarshal(raw, &payload)
		return HTTPError{Code: resp.StatusCode, Message: payload.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "unable to decode response")
}
