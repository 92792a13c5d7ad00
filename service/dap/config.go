package dap

import (
	"bytes"
	"fmt"

	"github.com/algorand/avm-replay-dap/pkg/config"
)

// sessionConfig holds the adjustable adapter-internal knobs exposed through
// the "config" expression of the evaluate request (see evaluateExpr).
// Everything else about a session is immutable once launched.
type sessionConfig struct {
	StackTraceDepth          int  `cfgName:"stackTraceDepth"`
	SupportsInvalidatedEvent bool `cfgName:"supportsInvalidatedEvent"`
}

var defaultSessionConfig = sessionConfig{StackTraceDepth: 50, SupportsInvalidatedEvent: false}

func listConfig(cfg *sessionConfig) string {
	var buf bytes.Buffer
	config.ConfigureList(&buf, cfg, "cfgName")
	return buf.String()
}

// configureSet parses a "<name> <value>" expression and assigns it onto
// cfg, returning a human-readable confirmation string. A bare "<name>"
// expression just lists that field's current value.
func configureSet(cfg *sessionConfig, expr string) (string, error) {
	v := config.Split2PartsBySpace(expr)
	cfgname := v[0]
	if len(v) == 1 {
		return config.ConfigureListByName(cfg, cfgname, "cfgName"), nil
	}
	field := config.ConfigureFindFieldByName(cfg, cfgname, "cfgName")
	if !field.IsValid() || !field.CanSet() {
		return "", fmt.Errorf("%q is not a configuration parameter", cfgname)
	}
	if err := config.ConfigureSetSimple(v[1], cfgname, field); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nUpdated", config.ConfigureListByName(cfg, cfgname, "cfgName")), nil
}
