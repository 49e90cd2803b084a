package instance

import (
	"testing"

	"github.com/hpcmsg/muscore/wire"
)

// TestConfigurationFromPayloadMap exercises the Map-kind-as-Configuration
// conversion muscle_parameters_in relies on (DESIGN.md's Open Question
// decision: wire.Payload has no direct Configuration kind).
func TestConfigurationFromPayloadMap(t *testing.T) {
	m := map[string]wire.Payload{
		"enabled": wire.Bool(true),
		"count":   wire.Int(7),
		"ratio":   wire.Float(0.5),
		"name":    wire.String("alpha"),
		"series":  wire.List(wire.Float(1), wire.Float(2), wire.Float(3)),
		"matrix":  wire.List(wire.List(wire.Float(1), wire.Float(2)), wire.List(wire.Float(3), wire.Float(4))),
	}

	cfg, err := configurationFromPayloadMap(m)
	if err != nil {
		t.Fatalf("configurationFromPayloadMap: %v", err)
	}
	if cfg.Len() != len(m) {
		t.Fatalf("cfg.Len() = %d, want %d", cfg.Len(), len(m))
	}

	for _, k := range cfg.Keys() {
		v, ok := cfg.GetByKey(k.Key())
		if !ok {
			t.Fatalf("missing key %q after conversion", k.Key())
		}
		switch k.Key() {
		case "enabled":
			if b, _ := v.Bool(); !b {
				t.Errorf("enabled = %v, want true", b)
			}
		case "count":
			if n, _ := v.Int(); n != 7 {
				t.Errorf("count = %d, want 7", n)
			}
		case "matrix":
			mat, ok := v.FloatMatrix()
			if !ok || len(mat) != 2 || mat[1][1] != 4 {
				t.Errorf("matrix = %v", mat)
			}
		}
	}
}

func TestConfigurationFromPayloadMapRejectsUnsupportedKind(t *testing.T) {
	m := map[string]wire.Payload{"bad": wire.Bytes([]byte("x"))}
	if _, err := configurationFromPayloadMap(m); err == nil {
		t.Fatalf("expected an error converting a bytes payload to a parameter value")
	}
}
