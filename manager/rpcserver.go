package manager

import (
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/hpcmsg/muscore/cmn/nlog"
)

// Paths for spec.md §6's four manager operations, served over fasthttp —
// the same low-allocation HTTP stack transport/fastrpc uses for the
// per-message pull protocol, here carrying small JSON request/response
// bodies instead.
const (
	PathRegister      = "/v1/manager/register"
	PathRequestPeers  = "/v1/manager/request-peers"
	PathDeregister    = "/v1/manager/deregister"
	PathSubmitLog     = "/v1/manager/submit-log"
	PathConfiguration = "/v1/manager/configuration"
)

// RPCServer exposes a Server's operations over fasthttp.
type RPCServer struct {
	srv *Server
	hs  *fasthttp.Server
}

func NewRPCServer(srv *Server) *RPCServer {
	r := &RPCServer{srv: srv}
	r.hs = &fasthttp.Server{Handler: r.route, Name: "muscore-manager"}
	return r
}

func (r *RPCServer) ListenAndServe(addr string) error {
	nlog.Infof("manager: listening on %s", addr)
	return r.hs.ListenAndServe(addr)
}

// Serve runs the RPCServer on an already-bound listener, letting callers
// (tests, or a supervisor that wants control over the bind/port choice)
// pick the address out-of-band instead of parsing it back out of addr.
func (r *RPCServer) Serve(ln net.Listener) error {
	nlog.Infof("manager: serving on %s", ln.Addr())
	return r.hs.Serve(ln)
}

func (r *RPCServer) Shutdown() error { return r.hs.Shutdown() }

func (r *RPCServer) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case PathRegister:
		r.handleRegister(ctx)
	case PathRequestPeers:
		r.handleRequestPeers(ctx)
	case PathDeregister:
		r.handleDeregister(ctx)
	case PathSubmitLog:
		r.handleSubmitLog(ctx)
	case PathConfiguration:
		r.handleConfiguration(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (r *RPCServer) handleRegister(ctx *fasthttp.RequestCtx) {
	var req RegisterInstanceRequest
	if err := jsoniter.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	resp := RegisterInstanceResponse{Status: string(StatusSuccess)}
	if err := r.srv.RegisterInstance(req.Name, req.Locations, req.Ports); err != nil {
		resp.Status = string(StatusError)
		resp.ErrorMessage = err.Error()
	}
	writeJSON(ctx, resp)
}

func (r *RPCServer) handleRequestPeers(ctx *fasthttp.RequestCtx) {
	var req RequestPeersRequest
	if err := jsoniter.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	res, err := r.srv.RequestPeers(req.Name)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	writeJSON(ctx, RequestPeersResponse{
		Status:         string(res.Status),
		Conduits:       res.Conduits,
		PeerDimensions: res.PeerDimensions,
		PeerLocations:  res.PeerLocations,
		ErrorMessage:   res.ErrorMessage,
	})
}

func (r *RPCServer) handleDeregister(ctx *fasthttp.RequestCtx) {
	var req DeregisterInstanceRequest
	if err := jsoniter.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	status := string(StatusSuccess)
	if err := r.srv.DeregisterInstance(req.Name); err != nil {
		status = string(StatusError)
	}
	writeJSON(ctx, DeregisterInstanceResponse{Status: status})
}

func (r *RPCServer) handleSubmitLog(ctx *fasthttp.RequestCtx) {
	var req SubmitLogMessageRequest
	if err := jsoniter.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	r.srv.SubmitLogMessage(LogRecord{
		InstanceID:       req.InstanceID,
		Operator:         req.Operator,
		TimestampISO8601: normalizeTimestamp(req.TimestampISO8601),
		Level:            req.Level,
		Text:             req.Text,
	})
	writeJSON(ctx, SubmitLogMessageResponse{})
}

// normalizeTimestamp implements spec.md §6's wire rule ("Timestamps on
// the wire use RFC3339 UTC with millisecond precision"): a submitted
// timestamp is parsed and re-rendered in that exact form, so a caller's
// differing precision or offset never reaches the log sink. An
// unparseable timestamp is forwarded unchanged rather than dropped —
// log forwarding must not lose the record over a formatting quirk.
func normalizeTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (r *RPCServer) handleConfiguration(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, GetConfigurationResponse{Configuration: r.srv.GetConfiguration()})
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
