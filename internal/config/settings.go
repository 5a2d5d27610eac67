// Package config holds the typed per-connection settings schema and the
// two-layer application configuration (YAML app defaults, JSON
// per-connection settings), including validation and default-filling.
package config

import "fmt"

// ConnectionKind is the machine type_id of a ConnectionType.
type ConnectionKind string

const (
	KindLocal  ConnectionKind = "local"
	KindSSH    ConnectionKind = "ssh"
	KindSerial ConnectionKind = "serial"
	KindTelnet ConnectionKind = "telnet"
	KindDocker ConnectionKind = "docker"
	KindWSL    ConnectionKind = "wsl"
	KindRemote ConnectionKind = "remote"
)

// LocalSettings configures a Local ConnectionType.
type LocalSettings struct {
	Shell   string            `json:"shell,omitempty" mapstructure:"shell"`
	Args    []string          `json:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `json:"env,omitempty" mapstructure:"env"`
	Cwd     string            `json:"cwd,omitempty" mapstructure:"cwd"`
	InitialCommand string     `json:"initialCommand,omitempty" mapstructure:"initialCommand"`
}

// SSHAuthMethod selects how an SSH connection authenticates.
type SSHAuthMethod string

const (
	SSHAuthAgent    SSHAuthMethod = "agent"
	SSHAuthPassword SSHAuthMethod = "password"
	SSHAuthKey      SSHAuthMethod = "key"
)

// SSHSettings configures an SSH ConnectionType.
type SSHSettings struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port,omitempty" mapstructure:"port"`
	User           string        `json:"user" mapstructure:"user"`
	AuthMethod     SSHAuthMethod `json:"authMethod" mapstructure:"authMethod"`
	KeyPath        string        `json:"keyPath,omitempty" mapstructure:"keyPath"`
	X11Forwarding  bool          `json:"x11Forwarding,omitempty" mapstructure:"x11Forwarding"`
	InitialCommand string        `json:"initialCommand,omitempty" mapstructure:"initialCommand"`
}

// Parity values for a Serial connection.
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// FlowControl values for a Serial connection.
type FlowControl string

const (
	FlowControlNone     FlowControl = "none"
	FlowControlHardware FlowControl = "hardware"
	FlowControlSoftware FlowControl = "software"
)

// SerialSettings configures a Serial ConnectionType. Resize is a no-op for
// this kind.
type SerialSettings struct {
	Device      string      `json:"device" mapstructure:"device"`
	Baud        int         `json:"baud" mapstructure:"baud"`
	DataBits    int         `json:"dataBits,omitempty" mapstructure:"dataBits"`
	StopBits    int         `json:"stopBits,omitempty" mapstructure:"stopBits"`
	Parity      Parity      `json:"parity,omitempty" mapstructure:"parity"`
	FlowControl FlowControl `json:"flowControl,omitempty" mapstructure:"flowControl"`
}

// TelnetSettings configures a Telnet ConnectionType. Resize is a no-op.
type TelnetSettings struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port,omitempty" mapstructure:"port"`
}

// DockerSettings configures a Docker ConnectionType.
type DockerSettings struct {
	Image         string            `json:"image" mapstructure:"image"`
	Shell         string            `json:"shell,omitempty" mapstructure:"shell"`
	Env           map[string]string `json:"env,omitempty" mapstructure:"env"`
	Volumes       []string          `json:"volumes,omitempty" mapstructure:"volumes"`
	RemoveOnExit  bool              `json:"removeOnExit,omitempty" mapstructure:"removeOnExit"`
}

// WSLSettings configures a WSL ConnectionType; same shape as Local with a
// distinct distro resolver.
type WSLSettings struct {
	Distro  string            `json:"distro" mapstructure:"distro"`
	Shell   string            `json:"shell,omitempty" mapstructure:"shell"`
	Env     map[string]string `json:"env,omitempty" mapstructure:"env"`
	Cwd     string            `json:"cwd,omitempty" mapstructure:"cwd"`
}

// RemoteSettings configures a RemoteProxy ConnectionType (§4.5): the SSH
// dial parameters for reaching the agent host, the remote connection
// kind/config the agent should open on our behalf, and the agent
// binary's exec command line.
type RemoteSettings struct {
	AgentHost       string        `json:"agentHost" mapstructure:"agentHost"`
	AgentPort       int           `json:"agentPort,omitempty" mapstructure:"agentPort"`
	AgentUser       string        `json:"agentUser" mapstructure:"agentUser"`
	AgentAuthMethod SSHAuthMethod `json:"agentAuthMethod" mapstructure:"agentAuthMethod"`
	AgentKeyPath    string        `json:"agentKeyPath,omitempty" mapstructure:"agentKeyPath"`
	AgentCommand    string        `json:"agentCommand,omitempty" mapstructure:"agentCommand"`

	RemoteType   string         `json:"remoteType" mapstructure:"remoteType"`
	RemoteConfig map[string]any `json:"remoteConfig" mapstructure:"remoteConfig"`
	RemoteTitle  string         `json:"remoteTitle,omitempty" mapstructure:"remoteTitle"`
}

// Validate applies the field-presence rules each kind's implementation
// depends on. It does not reach out to the filesystem or network — only
// structural checks, per spec's "validate settings" contracts.
func Validate(kind ConnectionKind, v any) error {
	switch kind {
	case KindLocal:
		return nil // shell resolution itself supplies the default
	case KindSSH:
		s, ok := v.(*SSHSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for ssh")
		}
		if s.Host == "" {
			return fmt.Errorf("config: ssh settings require a non-empty host")
		}
		if s.User == "" {
			return fmt.Errorf("config: ssh settings require a non-empty user")
		}
		switch s.AuthMethod {
		case SSHAuthAgent, SSHAuthPassword, SSHAuthKey:
		default:
			return fmt.Errorf("config: ssh settings have unknown authMethod %q", s.AuthMethod)
		}
		if s.AuthMethod == SSHAuthKey && s.KeyPath == "" {
			return fmt.Errorf("config: ssh key auth requires keyPath")
		}
		return nil
	case KindSerial:
		s, ok := v.(*SerialSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for serial")
		}
		if s.Device == "" {
			return fmt.Errorf("config: serial settings require a non-empty device")
		}
		if s.Baud <= 0 {
			return fmt.Errorf("config: serial settings require a positive baud rate")
		}
		return nil
	case KindTelnet:
		s, ok := v.(*TelnetSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for telnet")
		}
		if s.Host == "" {
			return fmt.Errorf("config: telnet settings require a non-empty host")
		}
		return nil
	case KindDocker:
		s, ok := v.(*DockerSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for docker")
		}
		if s.Image == "" {
			return fmt.Errorf("config: docker settings require a non-empty image")
		}
		for k := range s.Env {
			if k == "" {
				return fmt.Errorf("config: docker settings contain an empty env var key")
			}
		}
		for _, v := range s.Volumes {
			if v == "" {
				return fmt.Errorf("config: docker settings contain an empty volume path")
			}
		}
		return nil
	case KindWSL:
		s, ok := v.(*WSLSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for wsl")
		}
		if s.Distro == "" {
			return fmt.Errorf("config: wsl settings require a non-empty distro")
		}
		return nil
	case KindRemote:
		s, ok := v.(*RemoteSettings)
		if !ok {
			return fmt.Errorf("config: wrong settings type for remote")
		}
		if s.AgentHost == "" {
			return fmt.Errorf("config: remote settings require a non-empty agentHost")
		}
		if s.AgentUser == "" {
			return fmt.Errorf("config: remote settings require a non-empty agentUser")
		}
		switch s.AgentAuthMethod {
		case SSHAuthAgent, SSHAuthPassword, SSHAuthKey:
		default:
			return fmt.Errorf("config: remote settings have unknown agentAuthMethod %q", s.AgentAuthMethod)
		}
		if s.RemoteType == "" {
			return fmt.Errorf("config: remote settings require a non-empty remoteType")
		}
		return nil
	default:
		return fmt.Errorf("config: unknown connection kind %q", kind)
	}
}

// DefaultSSHPort and DefaultTelnetPort fill in when the corresponding
// settings field is left at its zero value.
const (
	DefaultSSHPort    = 22
	DefaultTelnetPort = 23
)

// ApplyDefaults fills in zero-valued optional fields. Call after decoding,
// before Validate.
func ApplyDefaults(kind ConnectionKind, v any) {
	switch kind {
	case KindSSH:
		if s, ok := v.(*SSHSettings); ok && s.Port == 0 {
			s.Port = DefaultSSHPort
		}
	case KindTelnet:
		if s, ok := v.(*TelnetSettings); ok && s.Port == 0 {
			s.Port = DefaultTelnetPort
		}
	case KindSerial:
		if s, ok := v.(*SerialSettings); ok {
			if s.DataBits == 0 {
				s.DataBits = 8
			}
			if s.StopBits == 0 {
				s.StopBits = 1
			}
			if s.Parity == "" {
				s.Parity = ParityNone
			}
			if s.FlowControl == "" {
				s.FlowControl = FlowControlNone
			}
		}
	case KindRemote:
		if s, ok := v.(*RemoteSettings); ok {
			if s.AgentPort == 0 {
				s.AgentPort = DefaultSSHPort
			}
			if s.AgentCommand == "" {
				s.AgentCommand = "termihub-agent --stdio"
			}
		}
	}
}
