package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	UsbIds      string         `mapstructure:"usbids" yaml:"usbids"`
	SysfsRoot   string         `mapstructure:"sysfs_root" yaml:"sysfs_root"`
	Transfer    TransferConfig `mapstructure:"transfer" yaml:"transfer"`
	DFU         DFUConfig      `mapstructure:"dfu" yaml:"dfu"`
	Watch       WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Export      ExportConfig   `mapstructure:"export" yaml:"export"`
	RemoteHosts []RemoteHost   `mapstructure:"remote_hosts" yaml:"remote_hosts"`
}

// TransferConfig tunes the bulk transfer engine
type TransferConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Retries   int `mapstructure:"retries" yaml:"retries"`
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// DFUConfig tunes the firmware upgrade client
type DFUConfig struct {
	TransferSize int `mapstructure:"transfer_size" yaml:"transfer_size"`
	TimeoutMs    int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Interface    int `mapstructure:"interface" yaml:"interface"`
}

// WatchConfig tunes the hotplug poll loop
type WatchConfig struct {
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// ExportConfig represents export configuration
type ExportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// RemoteHost represents a firmware server configuration
type RemoteHost struct {
	Name        string `mapstructure:"name" yaml:"name"`
	IP          string `mapstructure:"ip" yaml:"ip"`
	Port        string `mapstructure:"port" yaml:"port"`
	User        string `mapstructure:"user" yaml:"user"`
	SSHKey      string `mapstructure:"ssh_key" yaml:"ssh_key"`
	Password    string `mapstructure:"password,omitempty" yaml:"password,omitempty"`
	KnownHosts  string `mapstructure:"known_hosts" yaml:"known_hosts"`
	InsecureSSH bool   `mapstructure:"insecure_ssh" yaml:"insecure_ssh"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		UsbIds:    "/var/lib/usbutils/usb.ids",
		SysfsRoot: "/sys/bus/usb/devices",
		Transfer: TransferConfig{
			TimeoutMs: 1000,
			Retries:   3,
		},
		DFU: DFUConfig{
			TransferSize: 1024,
			TimeoutMs:    10000,
		},
		Watch: WatchConfig{
			IntervalMs: 1000,
		},
		Export: ExportConfig{
			Format: "json",
			Path:   ".",
		},
		RemoteHosts: []RemoteHost{},
	}
}

// Load loads configuration from file and returns merged config
// Priority: CLI flags > Environment variables > Config file > Defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".bootforge")
		v.SetConfigType("yaml")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(homeDir)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bootforge/")
	}

	v.SetEnvPrefix("BOOTFORGE")
	v.AutomaticEnv()

	// Config file is optional - defaults apply when none is found
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.UsbIds != "" {
		cfg.UsbIds = expandPath(cfg.UsbIds)
	}
	if cfg.Export.Path != "" {
		cfg.Export.Path = expandPath(cfg.Export.Path)
	}
	for i := range cfg.RemoteHosts {
		if cfg.RemoteHosts[i].SSHKey != "" {
			cfg.RemoteHosts[i].SSHKey = expandPath(cfg.RemoteHosts[i].SSHKey)
		}
		if cfg.RemoteHosts[i].KnownHosts != "" {
			cfg.RemoteHosts[i].KnownHosts = expandPath(cfg.RemoteHosts[i].KnownHosts)
		}
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("usbids", "/var/lib/usbutils/usb.ids")
	v.SetDefault("sysfs_root", "/sys/bus/usb/devices")
	v.SetDefault("transfer.timeout_ms", 1000)
	v.SetDefault("transfer.retries", 3)
	v.SetDefault("transfer.chunk_size", 0)
	v.SetDefault("dfu.transfer_size", 1024)
	v.SetDefault("dfu.timeout_ms", 10000)
	v.SetDefault("dfu.interface", 0)
	v.SetDefault("watch.interval_ms", 1000)
	v.SetDefault("export.format", "json")
	v.SetDefault("export.path", ".")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}

// GetRemoteHost returns remote host configuration by name
func (c *Config) GetRemoteHost(name string) (*RemoteHost, error) {
	for _, host := range c.RemoteHosts {
		if host.Name == name {
			return &host, nil
		}
	}
	return nil, fmt.Errorf("remote host '%s' not found in configuration", name)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validFormats := map[string]bool{"json": true, "xml": true, "pdf": true}
	if c.Export.Format != "" && !validFormats[c.Export.Format] {
		return fmt.Errorf("invalid export format: %s (must be json, xml, or pdf)", c.Export.Format)
	}

	if c.Transfer.Retries < 0 {
		return fmt.Errorf("transfer retries must not be negative")
	}
	if c.DFU.TransferSize <= 0 || c.DFU.TransferSize > 0xffff {
		return fmt.Errorf("dfu transfer size must be between 1 and 65535")
	}
	if c.Watch.IntervalMs <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	for i, host := range c.RemoteHosts {
		if host.Name == "" {
			return fmt.Errorf("remote host #%d: name is required", i)
		}
		if host.IP == "" {
			return fmt.Errorf("remote host '%s': IP is required", host.Name)
		}
		if host.User == "" {
			return fmt.Errorf("remote host '%s': user is required", host.Name)
		}
		if host.SSHKey == "" && host.Password == "" {
			return fmt.Errorf("remote host '%s': either ssh_key or password is required", host.Name)
		}
	}

	return nil
}
