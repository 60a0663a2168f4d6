package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Cluster is the Slurm cluster name, used to locate the
	// <cluster>_assoc_table when reading slurmdbd's database directly.
	Cluster string `yaml:"cluster"`
	// MinUID is the lowest UID considered a managed user account. A
	// pointer so an explicit 0 in the file is distinguishable from unset.
	MinUID *int `yaml:"minuid" validate:"omitempty,gte=0"`
	// Sacctmgr is the path to the sacctmgr binary.
	Sacctmgr string `yaml:"sacctmgr" validate:"required"`
	// PolicyFile is the path to the layered user settings file.
	PolicyFile string `yaml:"policyfile"`

	Defaults  Defaults  `yaml:"defaults"`
	Identity  Identity  `yaml:"identity"`
	Scheduler Scheduler `yaml:"scheduler"`
}

// Defaults seeds the DEFAULT policy scope before the policy file is read;
// DEFAULT lines in the file override these. Empty values set no default.
type Defaults struct {
	// Fairshare is a number, or the literal "parent" to request
	// scheduler-side inheritance.
	Fairshare      string `yaml:"fairshare"`
	GrpTRES        string `yaml:"grptres"`
	GrpTRESRunMins string `yaml:"grptresrunmins"`
}

// Identity selects where OS users and groups are enumerated from.
type Identity struct {
	Source string `yaml:"source" validate:"oneof=getent ldap"`
	LDAP   LDAP   `yaml:"ldap"`
}

// Scheduler selects where current association state is read from.
type Scheduler struct {
	Source  string  `yaml:"source" validate:"oneof=sacctmgr slurmdb"`
	Slurmdb Slurmdb `yaml:"slurmdb"`
}

type Slurmdb struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	ParseTime       bool   `yaml:"parseTime"`
	Loc             string `yaml:"loc"`
	TLS             string `yaml:"tls"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
}

type LDAP struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	UseTLS             bool   `yaml:"useTLS"`
	StartTLS           bool   `yaml:"startTLS"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	ServerName         string `yaml:"serverName"`
	RootCAFile         string `yaml:"rootCAFile"`
	ClientCertFile     string `yaml:"clientCertFile"`
	ClientKeyFile      string `yaml:"clientKeyFile"`
	BindDN             string `yaml:"bindDN"`
	BindPassword       string `yaml:"bindPassword"`
	BaseDN             string `yaml:"baseDN"`
	ConnectTimeout     string `yaml:"connectTimeout"`
	ReadTimeout        string `yaml:"readTimeout"`
}

// SetDefaults fills unset fields with the conventional values.
func (c *Config) SetDefaults() {
	if c.MinUID == nil {
		minuid := 1002
		c.MinUID = &minuid
	}
	if c.Sacctmgr == "" {
		c.Sacctmgr = "/usr/bin/sacctmgr"
	}
	if c.Defaults.Fairshare == "" {
		c.Defaults.Fairshare = "2"
	}
	if c.Identity.Source == "" {
		c.Identity.Source = "getent"
	}
	if c.Scheduler.Source == "" {
		c.Scheduler.Source = "sacctmgr"
	}
}

// Validate checks the config using go-playground/validator.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scheduler.Source == "slurmdb" && c.Cluster == "" {
		return fmt.Errorf("invalid configuration: cluster is required when scheduler.source=slurmdb")
	}
	return nil
}

// Load reads a YAML config file from the given path and unmarshals into
// Config, applying defaults and validating. A missing file is not an error:
// the defaults alone form a usable configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// fall through with zero config
	default:
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
