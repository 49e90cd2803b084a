/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpcmsg/muscore/cmn/cos"
	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/manager"
)

var (
	topologyPath string
	listenAddr   string
)

func init() {
	flag.StringVar(&topologyPath, "topology", "", "path to the ymmsl-style model document")
	flag.StringVar(&listenAddr, "listen", "localhost:9000", "address to serve the manager RPC on")
}

func main() {
	flag.Parse()
	if topologyPath == "" {
		cos.ExitLogf("missing required -topology flag")
	}

	topo, err := loadTopology(topologyPath)
	if err != nil {
		cos.ExitLogf("failed to load topology %q: %v", topologyPath, err)
	}

	reg, err := manager.NewRegistry()
	if err != nil {
		cos.ExitLogf("failed to init instance registry: %v", err)
	}
	defer reg.Close()

	metrics := manager.NewMetrics(prometheus.DefaultRegisterer)
	srv := manager.NewServer(topo, reg, metrics)
	rpc := manager.NewRPCServer(srv)

	nlog.Infof("muscle-manager: model %q, %d elements", topo.ModelName, len(topo.Elements))
	errCh := make(chan error, 1)
	go func() { errCh <- rpc.ListenAndServe(listenAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			cos.ExitLogf("manager RPC server failed: %v", err)
		}
	case <-sigCh:
		nlog.Infof("muscle-manager: shutting down")
		if err := rpc.Shutdown(); err != nil {
			nlog.Errorf("muscle-manager: shutdown: %v", err)
		}
	}
	fmt.Fprintln(os.Stderr, "muscle-manager: exited")
}
