// Package fastrpc puts transport.Server and transport.Client on the wire
// over fasthttp, the teacher's chosen HTTP stack (github.com/valyala/
// fasthttp, listed alongside net/http in the teacher's own go.mod). The
// request shape below is a direct generalization of api.BaseParams/
// api.ReqParams (github.com/hpcmsg/muscore/api): one struct carrying
// method, path and query, one pooled struct per in-flight call.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fastrpc

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/cmn/cos"
	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/wire"
)

const (
	pathDeposit = "/v1/deposit/"
	pathPull    = "/v1/pull/"

	// pollTimeout bounds a single long-poll round; the client reissues
	// the request rather than holding one connection open indefinitely,
	// the same reasoning as the teacher's idle-tick bound on a stream.
	pollTimeout = 25 * time.Second
)

// Server serves transport.Server's deposit/pull operations over HTTP
// using fasthttp, one fasthttp.Server per muscore instance process.
type Server struct {
	inner *transport.Server
	srv   *fasthttp.Server
	addr  string
}

func NewServer(addr string, inner *transport.Server) *Server {
	s := &Server{inner: inner, addr: addr}
	s.srv = &fasthttp.Server{Handler: s.handle, Name: "muscore-fastrpc"}
	return s
}

func (s *Server) ListenAndServe() error {
	nlog.Infof("fastrpc: listening on %s", s.addr)
	return s.srv.ListenAndServe(s.addr)
}

// Serve runs the server on a caller-supplied listener, letting tests bind
// an ephemeral port (net.Listen("tcp", "127.0.0.1:0")) instead of a fixed
// address.
func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case len(path) > len(pathDeposit) && path[:len(pathDeposit)] == pathDeposit:
		s.handleDeposit(ctx, path[len(pathDeposit):])
	case len(path) > len(pathPull) && path[:len(pathPull)] == pathPull:
		s.handlePull(ctx, path[len(pathPull):])
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleDeposit(ctx *fasthttp.RequestCtx, encodedReceiver string) {
	receiver, err := decodeReceiver(encodedReceiver)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	msg, err := wire.Deserialize(ctx.PostBody())
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	s.inner.Deposit(receiver, msg)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handlePull(ctx *fasthttp.RequestCtx, encodedReceiver string) {
	receiver, err := decodeReceiver(encodedReceiver)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	pollCtx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()
	msg, err := s.inner.GetMessage(pollCtx, receiver)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusRequestTimeout)
		return
	}
	data, err := wire.Serialize(msg)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}

// Client implements transport.Client by long-polling a peer's Server,
// reissuing the request across connection drops the same way
// cos.IsRetriableConnErr gates the teacher's own reconnect loop.
type Client struct {
	peerAddr string
	hc       *fasthttp.Client
}

func NewClient(peerAddr string) *Client {
	return &Client{peerAddr: peerAddr, hc: &fasthttp.Client{MaxConnsPerHost: 16}}
}

func (c *Client) GetMessage(ctx context.Context, receiver ref.Reference) (*wire.Message, error) {
	urlStr := fmt.Sprintf("http://%s%s%s", c.peerAddr, pathPull, encodeReceiver(receiver))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		req.SetRequestURI(urlStr)
		req.Header.SetMethod(fasthttp.MethodGet)

		err := c.hc.DoTimeout(req, resp, pollTimeout+5*time.Second)
		status := resp.StatusCode()
		var msg *wire.Message
		if err == nil && status == fasthttp.StatusOK {
			msg, err = wire.Deserialize(append([]byte(nil), resp.Body()...))
		}
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		switch {
		case err != nil && cos.IsRetriableConnErr(err):
			nlog.Warningf("fastrpc: retrying pull from %s: %v", c.peerAddr, err)
			continue
		case err != nil:
			return nil, err
		case status == fasthttp.StatusRequestTimeout:
			continue // long-poll round elapsed with nothing queued; reissue
		case status != fasthttp.StatusOK:
			return nil, fmt.Errorf("fastrpc: pull from %s: unexpected status %d", c.peerAddr, status)
		default:
			return msg, nil
		}
	}
}

// Deposit pushes msg to receiver's owning peer. Unlike GetMessage this is
// fire-and-forget from the caller's perspective once the HTTP round trip
// completes — the receiver's own Server.Deposit call is what actually
// wakes a blocked local Get.
func (c *Client) Deposit(ctx context.Context, receiver ref.Reference, msg *wire.Message) error {
	data, err := wire.Serialize(msg)
	if err != nil {
		return err
	}
	urlStr := fmt.Sprintf("http://%s%s%s", c.peerAddr, pathDeposit, encodeReceiver(receiver))
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(urlStr)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBody(data)

	if err := c.hc.DoTimeout(req, resp, 10*time.Second); err != nil {
		return cmn.WrapTransportError(err, "deposit to %s", c.peerAddr)
	}
	if resp.StatusCode() != fasthttp.StatusNoContent {
		return cmn.NewTransportError(nil, "deposit to %s: unexpected status %d", c.peerAddr, resp.StatusCode())
	}
	return nil
}

func encodeReceiver(r ref.Reference) string { return url.PathEscape(r.Key()) }

func decodeReceiver(encoded string) (ref.Reference, error) {
	s, err := url.PathUnescape(encoded)
	if err != nil {
		return ref.Reference{}, err
	}
	return ref.Parse(s)
}
