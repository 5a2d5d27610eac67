package config

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode turns a generic settings payload (as received over JSON-RPC, or
// passed to the CLI as JSON) into the typed struct for kind, applying
// defaults and validating the result.
//
// raw may be a map[string]any (already JSON-decoded) or a json.RawMessage
// (decoded here first), matching the two call sites that need this: the
// agent dispatcher's session.create params, and the termihub CLI's
// `session create --config` JSON.
func Decode(kind ConnectionKind, raw any) (any, error) {
	if msg, ok := raw.(json.RawMessage); ok {
		var generic map[string]any
		if err := json.Unmarshal(msg, &generic); err != nil {
			return nil, fmt.Errorf("config: unmarshal settings: %w", err)
		}
		raw = generic
	}

	target := newSettings(kind)
	if target == nil {
		return nil, fmt.Errorf("config: unknown connection kind %q", kind)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: decode %s settings: %w", kind, err)
	}

	ApplyDefaults(kind, target)
	if err := Validate(kind, target); err != nil {
		return nil, err
	}
	return target, nil
}

func newSettings(kind ConnectionKind) any {
	switch kind {
	case KindLocal:
		return &LocalSettings{}
	case KindSSH:
		return &SSHSettings{}
	case KindSerial:
		return &SerialSettings{}
	case KindTelnet:
		return &TelnetSettings{}
	case KindDocker:
		return &DockerSettings{}
	case KindWSL:
		return &WSLSettings{}
	case KindRemote:
		return &RemoteSettings{}
	default:
		return nil
	}
}
