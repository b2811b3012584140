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

package storageserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"

	"github.com/kurafs/netfs/pkg/cli"
	"github.com/kurafs/netfs/pkg/config"
	"github.com/kurafs/netfs/pkg/log"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

var StorageServerCmd = &cli.Command{
	Run:       storageServerCmdRun,
	UsageLine: "storage-server [-config file] [-ip ip] [-port port] [-export-root dir] [-max-conns n]",
	Short:     "serve a local directory to netfs clients",
	Long: `
Storage-server exports a local directory over the netfs.FileService RPC
interface. Every request names a path relative to the export root; paths
are cleaned before use and can never reach outside it.

File content is uploaded into a staging area inside the export root and
renamed over its destination only once all of it has arrived, so readers
never observe a partially written file.

The same port serves gRPC clients, grpc-web clients and Prometheus
metrics at /metrics.

Settings may also be read from a YAML file given with -config; flags set
on the command line take precedence over it.
    `,
}

func storageServerCmdRun(cmd *cli.Command, args []string) error {
	cfg := config.DefaultServer()
	cfg.RegisterFlags(&cmd.FlagSet)

	var configPath string
	cmd.FlagSet.StringVar(&configPath, "config", "", "YAML file with server settings")
	logFlags := log.RegisterFlags(&cmd.FlagSet)
	if err := cmd.FlagSet.Parse(args); err != nil {
		return cli.CmdParseError(err)
	}
	if err := config.Load(configPath, &cmd.FlagSet, &cfg); err != nil {
		return err
	}
	if err := config.Validate(&cfg); err != nil {
		return err
	}

	logger := logFlags.Logger()

	wait, shutdown, err := Start(logger, cfg)
	if err != nil {
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logger.Infof("received %v, shutting down", sig)
		shutdown()
	}()

	wait()
	shutdown()

	return nil
}

// Start serves cfg.ExportRoot on cfg.Address() until shutdown is called.
// wait blocks until every listener has stopped; shutdown may be called
// more than once.
func Start(logger *log.Logger, cfg config.Server) (wait func(), shutdown func(), err error) {
	var wg sync.WaitGroup

	registry := prometheus.NewRegistry()
	m := newMetrics(registry)

	fileServer, err := newFileServer(logger, cfg.ExportRoot, m)
	if err != nil {
		logger.Errorf("failed to prepare export root: %v", err)
		return nil, nil, err
	}

	lis, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		logger.Errorf("failed to open TCP port: %v", err)
		return nil, nil, err
	}
	if cfg.MaxConns > 0 {
		lis = netutil.LimitListener(lis, cfg.MaxConns)
	}

	// Create a cmux; multiplex grpc and http over the same listener.
	mux := cmux.New(lis)

	// Match connections in order: First grpc, then everything else for web.
	// Clients use the cbor content-subtype, so match on the prefix; the
	// settings frame has to be sent for gRPC clients to send their headers.
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(m.unaryInterceptor),
		grpc.ChainStreamInterceptor(m.streamInterceptor),
	)
	fspb.RegisterFileServiceServer(grpcServer, fileServer)

	httpMux := http.NewServeMux()
	httpMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	httpMux.Handle("/", grpcweb.WrapServer(grpcServer))
	httpServer := http.Server{Handler: httpMux}

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("serving RPC server on %s (export root %s)", lis.Addr(), fileServer.root)
		if err := grpcServer.Serve(grpcL); err != nil && err != cmux.ErrListenerClosed {
			logger.Errorf("grpc server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("serving HTTP server on %s", lis.Addr())
		if err := httpServer.Serve(httpL); err != nil && err != http.ErrServerClosed && err != cmux.ErrListenerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := mux.Serve(); err != nil && !isClosedErr(err) {
			logger.Errorf("cmux server error: %v", err)
		}
	}()

	var once sync.Once
	shutdown = func() {
		once.Do(func() {
			lis.Close()
			grpcServer.Stop()
			httpServer.Shutdown(context.Background())
		})
	}

	return wg.Wait, shutdown, nil
}

func isClosedErr(err error) bool {
	return err == cmux.ErrServerClosed || err == cmux.ErrListenerClosed || errors.Is(err, net.ErrClosed)
}
