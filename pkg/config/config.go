// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides the explicit configuration object that is passed to every component constructor,
// along with the target registry.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"gopkg.in/yaml.v3"
)

// defaults
const (
	DEFAULT_MESSAGE_TIMEOUT = 10
	DEFAULT_CACHE_TIMEOUT   = 120

	// VERSION is the config file format version written by this release
	VERSION = "1.0.0"
	// SUPPORTED_VERSIONS is the semver constraint that config file versions must satisfy
	SUPPORTED_VERSIONS = ">= 1.0.0, < 2.0.0"
)

// StompConnect are the STOMP broker connection parameters.
// The transport is off when Addr is blank.
type StompConnect struct {
	Addr     string `yaml:"addr" json:"addr"`
	Login    string `yaml:"login" json:"login"`
	Passcode string `yaml:"passcode" json:"passcode"`
	Host     string `yaml:"host" json:"host"`
	// HeartBeat is the send and receive heart-beat interval in milliseconds. 0 disables heart-beating.
	HeartBeat int `yaml:"heartBeat" json:"heartBeat"`
	// Version pins the STOMP protocol version : 1.0, 1.1 or 1.2. When blank, all three are offered and the broker picks.
	Version string `yaml:"version" json:"version"`
}

// STOMP protocol versions
var STOMP_VERSIONS = []string{"1.0", "1.1", "1.2"}

// CheckStompVersion verifies that the STOMP protocol version is one that can be negotiated. A blank version is valid.
func CheckStompVersion(version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil
	}
	for _, v := range STOMP_VERSIONS {
		if v == version {
			return nil
		}
	}
	return fmt.Errorf("unsupported STOMP version %q : %v", version, STOMP_VERSIONS)
}

// Enabled returns true if connection parameters were supplied
func (a StompConnect) Enabled() bool {
	return strings.TrimSpace(a.Addr) != ""
}

// cache drivers
const (
	REDIS = "redis"
	BOLT  = "bolt"
)

// CacheConnect are the cache connection parameters.
// The cache is off when neither Addr nor Path is supplied.
type CacheConnect struct {
	// Driver is either "redis" or "bolt". The default is "redis".
	Driver   string `yaml:"driver" json:"driver"`
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// Path is the bolt database file path
	Path string `yaml:"path" json:"path"`
	// Bucket is the bolt bucket name
	Bucket string `yaml:"bucket" json:"bucket"`
}

// Enabled returns true if connection parameters were supplied
func (a CacheConnect) Enabled() bool {
	return strings.TrimSpace(a.Addr) != "" || strings.TrimSpace(a.Path) != ""
}

// DriverName returns the cache driver, defaulting to REDIS
func (a CacheConnect) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(a.Driver))
	if driver == "" {
		return REDIS
	}
	return driver
}

// Config holds the global settings and the target registry.
// It is built once at startup and passed by reference to the transport, cache, request and listener constructors.
type Config struct {
	Version      string
	LogLevel     string
	StompConnect StompConnect
	CacheConnect CacheConnect
	// MessageTimeout is the default time, in seconds, to wait for a reply
	MessageTimeout int
	// CacheTimeout is the default time, in seconds, that replies are cached
	CacheTimeout int

	mutex   sync.RWMutex
	targets map[string]Target
}

type document struct {
	Version        string       `yaml:"version"`
	LogLevel       string       `yaml:"logLevel"`
	StompConnect   StompConnect `yaml:"stompConnect"`
	CacheConnect   CacheConnect `yaml:"cacheConnect"`
	MessageTimeout int          `yaml:"messageTimeout"`
	CacheTimeout   int          `yaml:"cacheTimeout"`
	Targets        []Target     `yaml:"targets"`
}

// Default returns a config with the transport and cache turned off and the default timeouts
func Default() *Config {
	return &Config{
		Version:        VERSION,
		MessageTimeout: DEFAULT_MESSAGE_TIMEOUT,
		CacheTimeout:   DEFAULT_CACHE_TIMEOUT,
		targets:        map[string]Target{},
	}
}

// Load reads the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a YAML config document. Timeouts that are not specified keep their defaults.
func Parse(data []byte) (*Config, error) {
	doc := document{
		MessageTimeout: DEFAULT_MESSAGE_TIMEOUT,
		CacheTimeout:   DEFAULT_CACHE_TIMEOUT,
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := CheckVersion(doc.Version); err != nil {
		return nil, err
	}
	if err := CheckStompVersion(doc.StompConnect.Version); err != nil {
		return nil, err
	}
	if doc.MessageTimeout < 0 || doc.CacheTimeout < 0 {
		return nil, fmt.Errorf("timeouts must not be negative : messageTimeout=%d cacheTimeout=%d", doc.MessageTimeout, doc.CacheTimeout)
	}

	cfg := Default()
	if doc.Version != "" {
		cfg.Version = doc.Version
	}
	cfg.LogLevel = doc.LogLevel
	cfg.StompConnect = doc.StompConnect
	cfg.CacheConnect = doc.CacheConnect
	cfg.MessageTimeout = doc.MessageTimeout
	cfg.CacheTimeout = doc.CacheTimeout
	for _, target := range doc.Targets {
		if err := cfg.AddTarget(target); err != nil {
			return nil, err
		}
	}
	if cfg.LogLevel != "" {
		neb.SetLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// CheckVersion verifies that the config format version is supported. A blank version is treated as the current one.
func CheckVersion(version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid config version %q : %v", version, err)
	}
	constraint, err := semver.NewConstraint(SUPPORTED_VERSIONS)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config version %q is not supported : %s", version, SUPPORTED_VERSIONS)
	}
	return nil
}

// TransportEnabled returns true if STOMP connection parameters were supplied
func (a *Config) TransportEnabled() bool {
	return a.StompConnect.Enabled()
}

// CacheEnabled returns true if cache connection parameters were supplied
func (a *Config) CacheEnabled() bool {
	return a.CacheConnect.Enabled()
}

// MessageTimeoutDuration returns the default reply timeout
func (a *Config) MessageTimeoutDuration() time.Duration {
	if a.MessageTimeout <= 0 {
		return DEFAULT_MESSAGE_TIMEOUT * time.Second
	}
	return time.Duration(a.MessageTimeout) * time.Second
}

// CacheTimeoutDuration returns the default cache TTL
func (a *Config) CacheTimeoutDuration() time.Duration {
	if a.CacheTimeout <= 0 {
		return DEFAULT_CACHE_TIMEOUT * time.Second
	}
	return time.Duration(a.CacheTimeout) * time.Second
}

// AddTarget validates and registers the target. Target names must be unique.
func (a *Config) AddTarget(target Target) error {
	target = target.TrimSpace()
	if err := target.Validate(); err != nil {
		return err
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.targets == nil {
		a.targets = map[string]Target{}
	}
	if _, exists := a.targets[target.Name]; exists {
		return fmt.Errorf("target is already registered : %q", target.Name)
	}
	a.targets[target.Name] = target
	return nil
}

// Target looks up the target by name. A ProtocolError is returned if the target is unknown.
func (a *Config) Target(name string) (Target, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	target, exists := a.targets[strings.TrimSpace(name)]
	if !exists {
		return Target{}, neb.NewProtocolError(fmt.Errorf("%v : %q", neb.ErrUnknownTarget, name))
	}
	return target, nil
}

// Targets returns the registered targets sorted by name
func (a *Config) Targets() []Target {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	targets := make([]Target, 0, len(a.targets))
	for _, target := range a.targets {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets
}
