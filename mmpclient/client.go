// Package mmpclient is spec.md §4.3's manager client: the RPC facade an
// instance uses to register, discover peers, fetch base configuration,
// deregister, and forward log messages. Grounded on the teacher's
// BaseParams/ReqParams facade (github.com/hpcmsg/muscore's now-deleted
// api/cluster.go, api/daemon.go): one small params struct carrying the
// manager endpoint, one call-shaped function per operation, no
// persistent connection state beyond a pooled fasthttp.Client.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mmpclient

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/manager"
)

// Client talks to one manager endpoint (spec.md §6's
// --muscle-manager=<host:port>).
type Client struct {
	addr string
	hc   *fasthttp.Client
}

func New(addr string) *Client {
	return &Client{addr: addr, hc: &fasthttp.Client{MaxConnsPerHost: 8}}
}

func (c *Client) url(path string) string { return fmt.Sprintf("http://%s%s", c.addr, path) }

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	body, err := jsoniter.Marshal(req)
	if err != nil {
		return err
	}
	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(c.url(path))
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	httpReq.SetBody(body)

	deadline := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	if err := c.hc.DoTimeout(httpReq, httpResp, deadline); err != nil {
		return cmn.WrapTransportError(err, "manager %s: %s", c.addr, path)
	}
	if httpResp.StatusCode() != fasthttp.StatusOK {
		return cmn.NewTransportError(nil, "manager %s: %s: status %d", c.addr, path, httpResp.StatusCode())
	}
	if resp == nil {
		return nil
	}
	return jsoniter.Unmarshal(httpResp.Body(), resp)
}

// RegisterInstance implements spec.md §4.3 register_instance /
// §6 RegisterInstance.
func (c *Client) RegisterInstance(ctx context.Context, name string, locations []string, ports []manager.PortMeta) error {
	req := manager.RegisterInstanceRequest{Name: name, Locations: locations, Ports: ports}
	var resp manager.RegisterInstanceResponse
	if err := c.post(ctx, manager.PathRegister, req, &resp); err != nil {
		return err
	}
	if resp.Status != string(manager.StatusSuccess) {
		return cmn.NewConfigurationError("register %q: %s", name, resp.ErrorMessage)
	}
	return nil
}

// DeregisterInstance implements spec.md §4.3 deregister_instance.
func (c *Client) DeregisterInstance(ctx context.Context, name string) error {
	req := manager.DeregisterInstanceRequest{Name: name}
	var resp manager.DeregisterInstanceResponse
	return c.post(ctx, manager.PathDeregister, req, &resp)
}

// SubmitLogMessage implements spec.md §4.3 submit_log_message / §6
// SubmitLogMessage, used by instance/comm to mirror WARNING+ log lines
// to the manager (SPEC_FULL.md §4).
func (c *Client) SubmitLogMessage(ctx context.Context, rec manager.LogRecord) error {
	req := manager.SubmitLogMessageRequest{
		InstanceID: rec.InstanceID, Operator: rec.Operator,
		TimestampISO8601: rec.TimestampISO8601, Level: rec.Level, Text: rec.Text,
	}
	var resp manager.SubmitLogMessageResponse
	return c.post(ctx, manager.PathSubmitLog, req, &resp)
}

// GetConfiguration implements spec.md §4.3 get_configuration.
func (c *Client) GetConfiguration(ctx context.Context) (*manager.GetConfigurationResponse, error) {
	var resp manager.GetConfigurationResponse
	if err := c.post(ctx, manager.PathConfiguration, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Backoff parameterizes RequestPeers' bounded exponential backoff on
// PENDING (spec.md §5: "the client polls with bounded exponential
// backoff").
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: 50 * time.Millisecond, Max: 5 * time.Second, Factor: 2.0}
}

// RequestPeers implements spec.md §4.3 request_peers, retrying on
// PENDING with bounded exponential backoff and jitter until ctx is done
// or the manager reports SUCCESS/ERROR.
func (c *Client) RequestPeers(ctx context.Context, name string, bo Backoff) (*manager.RequestPeersResponse, error) {
	wait := bo.Initial
	for {
		req := manager.RequestPeersRequest{Name: name}
		var resp manager.RequestPeersResponse
		if err := c.post(ctx, manager.PathRequestPeers, req, &resp); err != nil {
			return nil, err
		}
		switch resp.Status {
		case string(manager.StatusSuccess):
			return &resp, nil
		case string(manager.StatusError):
			return nil, cmn.NewConfigurationError("request_peers %q: %s", name, resp.ErrorMessage)
		case string(manager.StatusPending):
			if err := sleepWithJitter(ctx, wait); err != nil {
				return nil, cmn.NewPendingError(name)
			}
			wait = time.Duration(float64(wait) * bo.Factor)
			if wait > bo.Max {
				wait = bo.Max
			}
		default:
			return nil, cmn.NewTransportError(nil, "request_peers %q: unknown status %q", name, resp.Status)
		}
	}
}

func sleepWithJitter(ctx context.Context, d time.Duration) error {
	jittered := d/2 + time.Duration(rand.Int63n(int64(d/2+1)))
	t := time.NewTimer(jittered)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
