package manager

import (
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// RequestPeersStatus mirrors spec.md §4.3's three-way request_peers
// result.
type RequestPeersStatus string

const (
	StatusSuccess RequestPeersStatus = "SUCCESS"
	StatusPending RequestPeersStatus = "PENDING"
	StatusError   RequestPeersStatus = "ERROR"
)

type ConduitPair struct {
	Sender   string
	Receiver string
}

type PeerDims struct {
	PeerName   string
	Dimensions []int
}

type PeerLocation struct {
	InstanceName string
	Locations    []string
}

type RequestPeersResult struct {
	Status         RequestPeersStatus
	Conduits       []ConduitPair
	PeerDimensions []PeerDims
	PeerLocations  []PeerLocation
	ErrorMessage   string
}

// Server is spec.md §4.3's manager: instance registry + topology store,
// answering register/request-peers/get-configuration/deregister/
// submit-log. A single singleflight.Group collapses concurrent
// RequestPeers calls for the same kernel-scoped instance name into one
// registry read, matching SPEC_FULL.md §3's domain-stack wiring.
type Server struct {
	topo    *Topology
	reg     *Registry
	sink    *LogSink
	metrics *Metrics
	sf      singleflight.Group
}

func NewServer(topo *Topology, reg *Registry, metrics *Metrics) *Server {
	return &Server{topo: topo, reg: reg, sink: NewLogSink(), metrics: metrics}
}

// RegisterInstance implements spec.md §4.3's register_instance.
func (s *Server) RegisterInstance(name string, locations []string, ports []PortMeta) error {
	s.metrics.RequestsTotal.WithLabelValues("register").Inc()
	err := s.reg.Register(InstanceRecord{Name: name, Locations: locations, Ports: ports})
	if err != nil {
		return err
	}
	s.metrics.RegisteredTotal.Inc()
	s.metrics.RegistrySize.Inc()
	return nil
}

// DeregisterInstance implements spec.md §4.3's deregister_instance
// (idempotent).
func (s *Server) DeregisterInstance(name string) error {
	s.metrics.RequestsTotal.WithLabelValues("deregister").Inc()
	_, existed := s.reg.Get(name)
	if err := s.reg.Deregister(name); err != nil {
		return err
	}
	s.metrics.DeregisteredTotal.Inc()
	if existed {
		s.metrics.RegistrySize.Dec()
	}
	return nil
}

// GetConfiguration implements spec.md §4.3's get_configuration.
func (s *Server) GetConfiguration() *wire.Configuration {
	s.metrics.RequestsTotal.WithLabelValues("get_configuration").Inc()
	return s.topo.Settings
}

// SubmitLogMessage implements spec.md §4.3's submit_log_message.
func (s *Server) SubmitLogMessage(rec LogRecord) {
	s.metrics.RequestsTotal.WithLabelValues("submit_log_message").Inc()
	s.sink.Append(rec)
}

func (s *Server) LogRecords() []LogRecord { return s.sink.Records() }

// RequestPeers implements spec.md §4.3's request_peers, including the
// fan-out/fan-in/pending/unknown scenarios from spec.md §8.
func (s *Server) RequestPeers(name string) (*RequestPeersResult, error) {
	s.metrics.RequestsTotal.WithLabelValues("request_peers").Inc()
	v, err, _ := s.sf.Do(name, func() (any, error) {
		return s.requestPeers(name), nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*RequestPeersResult)
	if res.Status == StatusPending {
		s.metrics.PendingRequests.Inc()
	}
	return res, nil
}

func (s *Server) requestPeers(name string) *RequestPeersResult {
	r, err := ref.Parse(name)
	if err != nil {
		return &RequestPeersResult{Status: StatusError, ErrorMessage: err.Error()}
	}
	kernel := r.Head().String()
	if _, ok := s.topo.Element(kernel); !ok {
		return &RequestPeersResult{Status: StatusError, ErrorMessage: (&ErrUnknownElement{Name: name}).Error()}
	}

	var conduits []ConduitPair
	peerKernels := map[string]struct{}{}
	for _, c := range s.topo.Conduits {
		senderKernel := kernelOf(c.SenderPort)
		receiverKernel := kernelOf(c.ReceiverPort)
		if senderKernel != kernel && receiverKernel != kernel {
			continue
		}
		conduits = append(conduits, ConduitPair{Sender: c.SenderPort, Receiver: c.ReceiverPort})
		if senderKernel == kernel {
			peerKernels[receiverKernel] = struct{}{}
		}
		if receiverKernel == kernel {
			peerKernels[senderKernel] = struct{}{}
		}
	}
	delete(peerKernels, kernel)

	peerDims := make([]PeerDims, 0, len(peerKernels))
	peerLocations := make([]PeerLocation, 0)
	allResolved := true
	for peer := range peerKernels {
		spec, ok := s.topo.Element(peer)
		if !ok {
			allResolved = false
			continue
		}
		peerDims = append(peerDims, PeerDims{PeerName: peer, Dimensions: append([]int(nil), spec.Multiplicity...)})
		for _, instName := range instancesForElement(spec) {
			rec, ok := s.reg.Get(instName)
			if !ok {
				allResolved = false
				continue
			}
			peerLocations = append(peerLocations, PeerLocation{InstanceName: instName, Locations: rec.Locations})
		}
	}

	if !allResolved {
		return &RequestPeersResult{Status: StatusPending}
	}
	return &RequestPeersResult{
		Status:         StatusSuccess,
		Conduits:       conduits,
		PeerDimensions: peerDims,
		PeerLocations:  peerLocations,
	}
}

// kernelOf strips a conduit endpoint's port suffix, returning the
// compute-element name (the part before the first '.').
func kernelOf(endpoint string) string {
	if i := strings.IndexByte(endpoint, '.'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
