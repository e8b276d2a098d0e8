package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/yaml.v3"
)

const (
	defaultHostname  = "https://fritz.box"
	legacyDeviceName = "legacy_device"

	temperatureSensorType = "temperature_sensor"
	thermostatType        = "thermostat"
)

// Config is the content of the configuration file. The top-level
// connection keys are deprecated, they describe one extra FRITZ!Box
// named legacy_device.
type Config struct {
	Defaults FritzBoxConfig   `yaml:"defaults"`
	Devices  []FritzBoxConfig `yaml:"devices"`

	Username    *string   `yaml:"username"`
	Password    *string   `yaml:"password"`
	Hostname    *string   `yaml:"hostname"`
	SSLVerify   *bool     `yaml:"ssl_verify"`
	DeviceTypes *[]string `yaml:"device_types"`
}

// FritzBoxConfig holds the settings of one FRITZ!Box as written in the
// file. Unset fields are nil and fall back to the defaults.
type FritzBoxConfig struct {
	Name        *string   `yaml:"name"`
	Hostname    *string   `yaml:"hostname"`
	Username    *string   `yaml:"username"`
	Password    *string   `yaml:"password"`
	SSLVerify   *bool     `yaml:"ssl_verify"`
	DeviceTypes *[]string `yaml:"device_types"`
}

// ConnectionConfig is the resolved configuration of one FRITZ!Box.
type ConnectionConfig struct {
	Name        string
	Hostname    string
	Username    string
	Password    string
	SSLVerify   bool
	DeviceTypes []string
}

func builtinDefaults() ConnectionConfig {
	return ConnectionConfig{
		Hostname:  defaultHostname,
		SSLVerify: true,
	}
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Connections resolves the FRITZ!Boxes to poll, in file order with the
// legacy device last. Entries without credentials or with a name already
// taken are logged and left out.
func (c *Config) Connections(logger log.Logger) []ConnectionConfig {
	defaults := builtinDefaults().merge(c.Defaults)

	var out []ConnectionConfig
	seen := map[string]bool{}
	add := func(conn ConnectionConfig) {
		if seen[conn.Name] {
			level.Error(logger).Log("msg", "device name is already in use, device removed", "device", conn.Name)
			return
		}
		seen[conn.Name] = true
		conn.warnUnknownTypes(logger)
		out = append(out, conn)
	}

	for idx, d := range c.Devices {
		conn := defaults.merge(d)
		if d.Name == nil {
			conn.Name = fmt.Sprintf("device_%d", idx)
		}
		conn.Hostname = normalizeHostname(conn.Hostname)

		if conn.Username == "" || conn.Password == "" {
			level.Error(logger).Log("msg", "username and password are mandatory, device removed", "device", conn.Name)
			continue
		}
		add(conn)
	}

	if c.hasLegacy() {
		level.Warn(logger).Log("msg", "top-level connection parameters are deprecated, move them into the devices list")
		conn := builtinDefaults().merge(FritzBoxConfig{
			Hostname:    c.Hostname,
			Username:    c.Username,
			Password:    c.Password,
			SSLVerify:   c.SSLVerify,
			DeviceTypes: c.DeviceTypes,
		})
		conn.Name = legacyDeviceName
		conn.Hostname = normalizeHostname(conn.Hostname)
		add(conn)
	}

	return out
}

func (c *Config) hasLegacy() bool {
	return c.Username != nil || c.Password != nil || c.Hostname != nil || c.DeviceTypes != nil
}

// merge returns a copy of c with every field set in o replacing its value.
func (c ConnectionConfig) merge(o FritzBoxConfig) ConnectionConfig {
	if o.Name != nil {
		c.Name = *o.Name
	}
	if o.Hostname != nil {
		c.Hostname = *o.Hostname
	}
	if o.Username != nil {
		c.Username = *o.Username
	}
	if o.Password != nil {
		c.Password = *o.Password
	}
	if o.SSLVerify != nil {
		c.SSLVerify = *o.SSLVerify
	}
	if o.DeviceTypes != nil {
		c.DeviceTypes = append([]string(nil), *o.DeviceTypes...)
	}
	return c
}

func (c ConnectionConfig) warnUnknownTypes(logger log.Logger) {
	for _, t := range c.DeviceTypes {
		if t != temperatureSensorType && t != thermostatType {
			level.Warn(logger).Log("msg", "unknown device type ignored", "device", c.Name, "device_type", t)
		}
	}
}

func normalizeHostname(host string) string {
	if strings.HasPrefix(host, "https://") || strings.HasPrefix(host, "http://") {
		return host
	}
	return "https://" + host
}
