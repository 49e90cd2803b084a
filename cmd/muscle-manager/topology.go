// Package main is the muscle-manager entry point: load a topology
// document, serve spec.md §4.3's register/request-peers/deregister/
// submit-log/get-configuration RPCs over fasthttp.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hpcmsg/muscore/manager"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// topologyDoc mirrors spec.md §6's on-disk document shape: ymmsl_version,
// model.name, model.compute_elements, model.conduits, settings. Parsing
// this document is explicitly external to package manager (its own doc
// comment says so); this file is that external collaborator.
type topologyDoc struct {
	YmmslVersion string `yaml:"ymmsl_version"`
	Model        struct {
		Name            string `yaml:"name"`
		ComputeElements map[string]struct {
			Implementation string `yaml:"implementation"`
			Multiplicity   []int  `yaml:"multiplicity"`
		} `yaml:"compute_elements"`
		Conduits map[string]string `yaml:"conduits"`
	} `yaml:"model"`
	Settings map[string]any `yaml:"settings"`
}

// loadTopology reads and parses a topology document at path into a
// manager.Topology.
func loadTopology(path string) (*manager.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc topologyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse topology %q: %w", path, err)
	}

	topo := manager.NewTopology(doc.Model.Name)
	for name, e := range doc.Model.ComputeElements {
		topo.AddElement(manager.ElementSpec{Name: name, Multiplicity: e.Multiplicity})
	}
	for sender, receiver := range doc.Model.Conduits {
		topo.AddConduit(manager.ConduitSpec{SenderPort: sender, ReceiverPort: receiver})
	}
	for name, v := range doc.Settings {
		nameRef, err := ref.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("topology settings: %q: %w", name, err)
		}
		pv, err := parameterValueFromYAML(v)
		if err != nil {
			return nil, fmt.Errorf("topology settings: %q: %w", name, err)
		}
		topo.Settings.Set(nameRef, pv)
	}
	return topo, nil
}

// parameterValueFromYAML converts one decoded YAML scalar/sequence into
// spec.md §3's ParameterValue ∈ {bool, i64, f64, string, list<f64>,
// list<list<f64>>} — the same narrower sum instance's
// configurationFromPayloadMap converts a wire.Payload map into, since
// both ultimately populate the same Configuration type.
func parameterValueFromYAML(v any) (wire.ParameterValue, error) {
	switch t := v.(type) {
	case bool:
		return wire.ParamFromBool(t), nil
	case int:
		return wire.ParamFromInt(int64(t)), nil
	case int64:
		return wire.ParamFromInt(t), nil
	case float64:
		return wire.ParamFromFloat(t), nil
	case string:
		return wire.ParamFromString(t), nil
	case []any:
		return floatListOrMatrix(t)
	default:
		return wire.ParameterValue{}, fmt.Errorf("unsupported settings value type %T", v)
	}
}

func floatListOrMatrix(list []any) (wire.ParameterValue, error) {
	if len(list) == 0 {
		return wire.ParamFromFloatList(nil), nil
	}
	if _, ok := list[0].([]any); ok {
		matrix := make([][]float64, len(list))
		for i, row := range list {
			inner, ok := row.([]any)
			if !ok {
				return wire.ParameterValue{}, fmt.Errorf("ragged settings matrix at row %d", i)
			}
			floats := make([]float64, len(inner))
			for j, el := range inner {
				f, err := toFloat(el)
				if err != nil {
					return wire.ParameterValue{}, fmt.Errorf("matrix[%d][%d]: %w", i, j, err)
				}
				floats[j] = f
			}
			matrix[i] = floats
		}
		return wire.ParamFromFloatMatrix(matrix), nil
	}
	floats := make([]float64, len(list))
	for i, el := range list {
		f, err := toFloat(el)
		if err != nil {
			return wire.ParameterValue{}, fmt.Errorf("list[%d]: %w", i, err)
		}
		floats[i] = f
	}
	return wire.ParamFromFloatList(floats), nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%T is not numeric", v)
	}
}
