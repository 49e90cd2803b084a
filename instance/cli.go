package instance

import (
	"strconv"
	"strings"

	"github.com/hpcmsg/muscore/cmn"
)

// Config is spec.md §6's three instance-library CLI flags, already
// defaulted and parsed out of argv by ParseFlags.
type Config struct {
	ManagerAddr string
	Index       []int
	LogFile     string
}

const (
	flagManager = "--muscle-manager="
	flagIndex   = "--muscle-index="
	flagLogFile = "--muscle-log-file="
)

// ParseFlags extracts spec.md §6's three --muscle-* flags out of argv
// (typically os.Args[1:]), leaving every other argument untouched: user
// code's own flag.Parse (or any other CLI framework) sees the rest of
// argv exactly as the process was invoked, so this cannot use the
// standard flag package (it would reject the model's own flags).
func ParseFlags(argv []string) (Config, error) {
	cfg := Config{ManagerAddr: "localhost:9000"}
	for _, a := range argv {
		switch {
		case strings.HasPrefix(a, flagManager):
			cfg.ManagerAddr = a[len(flagManager):]
		case strings.HasPrefix(a, flagIndex):
			idx, err := parseIndex(a[len(flagIndex):])
			if err != nil {
				return Config{}, err
			}
			cfg.Index = idx
		case strings.HasPrefix(a, flagLogFile):
			cfg.LogFile = a[len(flagLogFile):]
		}
	}
	return cfg, nil
}

func parseIndex(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, cmn.NewConfigurationError("--muscle-index: %q is not an integer list", s)
		}
		out[i] = n
	}
	return out, nil
}
