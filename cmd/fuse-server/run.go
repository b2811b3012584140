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

package fuseserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/kurafs/netfs/pkg/cli"
	"github.com/kurafs/netfs/pkg/client"
	"github.com/kurafs/netfs/pkg/config"
	"github.com/kurafs/netfs/pkg/log"
)

var FuseServerCmd = &cli.Command{
	Run:       fuseServerCmdRun,
	UsageLine: "fuse-server [-config file] [-remote-host host] [-port port] [-mount-root dir] [-cache-dir dir] [-unmount] [logger flags] <mount-point>",
	Short:     "mount a netfs storage server at the specified mount point",
	Long: `
Fuse-server mounts the namespace exported by a storage server, starting
at -mount-root, at the given mount point.

Files are transferred whole. Opening a file brings a local copy under
-cache-dir up to date, asking the server whether the copy it already has
is stale. Reads and writes only touch the local copy; closing or syncing
a modified file uploads it again. Directory operations go straight to the
server.

File attributes are cached for -attr-ttl. Local copies survive restarts.

Settings may also be read from a YAML file given with -config; flags set
on the command line take precedence over it.

With -unmount the mount point is detached and the command exits.
    `,
}

func fuseServerCmdRun(cmd *cli.Command, args []string) error {
	cfg := config.DefaultClient()
	cfg.RegisterFlags(&cmd.FlagSet)

	var (
		configPath  string
		unmountFlag bool
	)
	cmd.FlagSet.StringVar(&configPath, "config", "", "YAML file with client settings")
	cmd.FlagSet.BoolVar(&unmountFlag, "unmount", false,
		"Unmount filesystem at specified directory")
	logFlags := log.RegisterFlags(&cmd.FlagSet)
	if err := cmd.FlagSet.Parse(args); err != nil {
		return cli.CmdParseError(err)
	}

	if cmd.FlagSet.NArg() > 1 {
		return cli.CmdParseError(fmt.Errorf("unrecognized arguments: %v", cmd.FlagSet.Args()[1:]))
	}
	if cmd.FlagSet.NArg() == 0 {
		return cli.CmdParseError(errors.New("unspecified mount-point"))
	}
	mountPoint := cmd.FlagSet.Arg(0)

	logger := logFlags.Logger()

	if unmountFlag {
		if err := unmount(logger, mountPoint); err != nil {
			logger.Error(err.Error())
			return err
		}
		return nil
	}

	if err := config.Load(configPath, &cmd.FlagSet, &cfg); err != nil {
		return err
	}
	if err := config.Validate(&cfg); err != nil {
		return err
	}

	c, err := client.Dial(logger, cfg.Address(),
		client.WithTimeout(cfg.RPCTimeout), client.WithCompression(cfg.Compression))
	if err != nil {
		return err
	}
	defer c.Close()

	adapter, err := NewAdapter(logger, c, cfg)
	if err != nil {
		logger.Errorf("failed to open cache: %v", err)
		return err
	}
	defer func() {
		if err := adapter.Close(context.Background()); err != nil {
			logger.Warnf("closing adapter: %v", err)
		}
	}()

	server, err := mount(logger, mountPoint, adapter, cfg)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logger.Infof("received %v, unmounting %s", sig, mountPoint)
		if err := server.Unmount(); err != nil {
			logger.Errorf("unmount: %v", err)
		}
	}()

	server.Wait()
	return nil
}

func unmount(logger *log.Logger, mountPoint string) error {
	if err := unix.Unmount(mountPoint, 0); err != nil {
		// Unprivileged mounts can only be detached by the setuid helper.
		if out, herr := exec.Command("fusermount", "-u", mountPoint).CombinedOutput(); herr != nil {
			return fmt.Errorf("unmount %s: %v (fusermount: %v: %s)", mountPoint, err, herr, out)
		}
	}
	logger.Infof("unmounted point: %s", mountPoint)
	return nil
}

func mount(logger *log.Logger, mountPoint string, adapter *Adapter, cfg config.Client) (*fuse.Server, error) {
	ttl := cfg.AttrTTL
	server, err := gofuse.Mount(mountPoint, newRoot(adapter), &gofuse.Options{
		EntryTimeout: &ttl,
		AttrTimeout:  &ttl,
		MountOptions: fuse.MountOptions{
			FsName: fmt.Sprintf("netfs:%s%s", cfg.Address(), cfg.MountRoot),
			Name:   "netfs",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", mountPoint, err)
	}
	logger.Infof("mounted %s%s at %s", cfg.Address(), cfg.MountRoot, mountPoint)
	return server, nil
}
