package instance

import (
	"fmt"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/manager"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// wireConduits folds a request_peers response into this instance's own
// ports: spec.md §4.2's Port.Connect(peer, peerDims) call, once per
// conduit endpoint that names one of our own ports. locations are
// recorded on the communicator for SendMessage's deposit routing.
func (in *Instance) wireConduits(resp *manager.RequestPeersResponse) error {
	if resp.Status != string(manager.StatusSuccess) {
		return cmn.NewPendingError(resp.Status)
	}

	selfKernel := in.self.Head().String()
	dimsByKernel := map[string][]int{}
	for _, pd := range resp.PeerDimensions {
		dimsByKernel[pd.PeerName] = pd.Dimensions
	}

	locations := map[string][]string{}
	for _, pl := range resp.PeerLocations {
		locations[pl.InstanceName] = append(locations[pl.InstanceName], pl.Locations...)
	}
	in.comm.SetPeerLocations(locations)

	for _, c := range resp.Conduits {
		senderKernel, senderPort := splitEndpoint(c.Sender)
		receiverKernel, receiverPort := splitEndpoint(c.Receiver)

		if senderKernel == selfKernel {
			if err := in.connectOwnPort(senderPort, c.Receiver, dimsByKernel[receiverKernel]); err != nil {
				return err
			}
		}
		if receiverKernel == selfKernel {
			if err := in.connectOwnPort(receiverPort, c.Sender, dimsByKernel[senderKernel]); err != nil {
				return err
			}
		}
	}
	return nil
}

// connectOwnPort records peerEndpoint ("kernel.port", as the conduit
// names it) as the peer of our own port portName.
func (in *Instance) connectOwnPort(portName, peerEndpoint string, peerDims []int) error {
	p, ok := in.comm.Port(portName)
	if !ok {
		// A conduit naming a port we never declared is the manager's
		// topology disagreeing with our code, not a transient condition.
		return cmn.NewConfigurationError("conduit names undeclared port %q", portName)
	}
	peer, err := ref.Parse(peerEndpoint)
	if err != nil {
		return err
	}
	p.Connect(peer, peerDims)
	return nil
}

// configurationFromPayloadMap converts the wire.Map payload
// muscle_parameters_in carries (wire.Payload has no direct Configuration
// kind — see DESIGN.md's Open Question decision) into a *wire.Configuration.
// Each map entry's Payload must be a bool/int/float/string scalar or a
// list decodable as list<f64> or list<list<f64>>.
func configurationFromPayloadMap(m map[string]wire.Payload) (*wire.Configuration, error) {
	cfg := wire.NewConfiguration()
	for k, v := range m {
		name, err := ref.Parse(k)
		if err != nil {
			return nil, cmn.NewProtocolError("muscle_parameters_in: invalid setting name %q: %v", k, err)
		}
		pv, err := parameterValueFromPayload(v)
		if err != nil {
			return nil, cmn.NewProtocolError("muscle_parameters_in: setting %q: %v", k, err)
		}
		cfg.Set(name, pv)
	}
	return cfg, nil
}

func parameterValueFromPayload(p wire.Payload) (wire.ParameterValue, error) {
	switch p.Kind() {
	case wire.KindBool:
		v, _ := p.AsBool()
		return wire.ParamFromBool(v), nil
	case wire.KindInt:
		v, _ := p.AsInt()
		return wire.ParamFromInt(v), nil
	case wire.KindFloat:
		v, _ := p.AsFloat()
		return wire.ParamFromFloat(v), nil
	case wire.KindString:
		v, _ := p.AsString()
		return wire.ParamFromString(v), nil
	case wire.KindList:
		list, _ := p.AsList()
		return parameterValueFromList(list)
	default:
		return wire.ParameterValue{}, cmn.NewTypeMismatchError("muscle_parameters_in", fmt.Sprint(p.Kind()), "bool/int/float/string/list")
	}
}

func parameterValueFromList(list []wire.Payload) (wire.ParameterValue, error) {
	if len(list) == 0 {
		return wire.ParamFromFloatList(nil), nil
	}
	if list[0].Kind() == wire.KindList {
		matrix := make([][]float64, len(list))
		for i, row := range list {
			inner, ok := row.AsList()
			if !ok {
				return wire.ParameterValue{}, cmn.NewTypeMismatchError(fmt.Sprintf("row %d", i), "non-list", "list<f64>")
			}
			floats := make([]float64, len(inner))
			for j, el := range inner {
				f, ok := el.AsFloat()
				if !ok {
					return wire.ParameterValue{}, cmn.NewTypeMismatchError(fmt.Sprintf("[%d][%d]", i, j), "non-float", "f64")
				}
				floats[j] = f
			}
			matrix[i] = floats
		}
		return wire.ParamFromFloatMatrix(matrix), nil
	}
	floats := make([]float64, len(list))
	for i, el := range list {
		f, ok := el.AsFloat()
		if !ok {
			return wire.ParameterValue{}, cmn.NewTypeMismatchError(fmt.Sprintf("[%d]", i), "non-float", "f64")
		}
		floats[i] = f
	}
	return wire.ParamFromFloatList(floats), nil
}
