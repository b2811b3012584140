// Copyright 2018 The Kura Authors.
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

// Package config holds the settings of the storage server and the
// filesystem client. Settings come from defaults, then an optional YAML
// file, then command-line flags; flags set explicitly always win.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPort is the port the storage server listens on.
const DefaultPort = 50051

// Server configures the storage server.
type Server struct {
	IP         string `yaml:"ip" validate:"required,ip"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	ExportRoot string `yaml:"export-root" validate:"required"`
	// MaxConns caps concurrently accepted connections; zero is unlimited.
	MaxConns int `yaml:"max-conns" validate:"gte=0"`
}

// Client configures the filesystem adapter.
type Client struct {
	RemoteHost string `yaml:"remote-host" validate:"required,hostname_rfc1123"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	// MountRoot is the directory of the remote namespace exposed at the
	// mount point.
	MountRoot string `yaml:"mount-root" validate:"required,startswith=/"`
	CacheDir  string `yaml:"cache-dir" validate:"required"`
	// AttrTTL bounds how long file attributes are served from memory.
	AttrTTL time.Duration `yaml:"attr-ttl" validate:"gte=0"`
	// RPCTimeout bounds every unary call; zero means no deadline.
	RPCTimeout  time.Duration `yaml:"rpc-timeout" validate:"gte=0"`
	Compression string        `yaml:"compression" validate:"omitempty,oneof=none zstd"`
}

// DefaultServer returns the server defaults.
func DefaultServer() Server {
	return Server{
		IP:         "127.0.0.1",
		Port:       DefaultPort,
		ExportRoot: "netfs-export",
	}
}

// DefaultClient returns the client defaults.
func DefaultClient() Client {
	return Client{
		RemoteHost:  "127.0.0.1",
		Port:        DefaultPort,
		MountRoot:   "/",
		CacheDir:    filepath.Join(os.TempDir(), "netfs-cache"),
		AttrTTL:     time.Second,
		Compression: "none",
	}
}

// RegisterFlags binds the server settings to flags on fs.
func (c *Server) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.IP, "ip", c.IP, "IP address on which the server will listen")
	fs.IntVar(&c.Port, "port", c.Port, "Port which the server will run on")
	fs.StringVar(&c.ExportRoot, "export-root", c.ExportRoot, "Directory served to clients")
	fs.IntVar(&c.MaxConns, "max-conns", c.MaxConns, "Maximum number of concurrent connections (0 for unlimited)")
}

// RegisterFlags binds the client settings to flags on fs.
func (c *Client) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.RemoteHost, "remote-host", c.RemoteHost, "Host of the storage server")
	fs.IntVar(&c.Port, "port", c.Port, "Port of the storage server")
	fs.StringVar(&c.MountRoot, "mount-root", c.MountRoot, "Remote directory exposed at the mount point")
	fs.StringVar(&c.CacheDir, "cache-dir", c.CacheDir, "Directory holding local copies of remote files")
	fs.DurationVar(&c.AttrTTL, "attr-ttl", c.AttrTTL, "How long file attributes are cached")
	fs.DurationVar(&c.RPCTimeout, "rpc-timeout", c.RPCTimeout, "Deadline for each remote call (0 for none)")
	fs.StringVar(&c.Compression, "compression", c.Compression, "Message compression: none or zstd")
}

// Address returns the host:port of the storage server.
func (c Client) Address() string {
	return fmt.Sprintf("%s:%d", c.RemoteHost, c.Port)
}

// Address returns the host:port the server listens on.
func (c Server) Address() string {
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}
