package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "capture":
		return captureTemplate, nil
	case "decode":
		return decodeTemplate, nil
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

const captureTemplate = `node_id = "capture-1"
input = "-"
format = "binary"
frequency_hz = 433920000.0
sample_rate_hz = 250000
start_id = 1

[broker]
host = "localhost"
port = 5672
user = "guest"
pass = "guest"
exchange = "rtl_433"
signals_queue = "signals"
detected_queue = "detected"
`

const decodeTemplate = `node_id = "decode-1"
db_path = "unknown_signals.db"
stats_interval = "1m"
poll_timeout = "1s"

[broker]
host = "localhost"
port = 5672
user = "guest"
pass = "guest"
exchange = "rtl_433"
signals_queue = "signals"
detected_queue = "detected"
`
