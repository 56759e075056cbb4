package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge":
		return bridgeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const bridgeTemplate = `moonraker_url = "ws://localhost:7125/websocket"
spoolman_url = "http://localhost:7912/api"
set_macro_prefix = "_SPOOLMAN_SET_FIELD_"
clear_macro = "_SPOOLMAN_CLEAR_SPOOL"
load_complete_macro = "_SPOOLMAN_LOAD_COMPLETE"
metrics_addr = ""

[session]
connect_timeout = "5s"
write_timeout = "10s"
call_timeout = "30s"
ping_interval = "20s"
pong_wait = "60s"

[session.backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "10s"
jitter = true
`
