package cxp

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opencxp/cxp-client-go/internal/inspect"
)

// InspectServer is an in-process MCP tool server that answers questions
// about running controllers: which are registered, their environment
// snapshots, and their connection states.
type InspectServer = inspect.Server

// Inspection tool names served by the inspection server.
const (
	// InspectToolControllers lists the registered controllers.
	InspectToolControllers = inspect.ToolControllers
	// InspectToolEnvironment shows a controller's environment snapshot.
	InspectToolEnvironment = inspect.ToolEnvironment
	// InspectToolConnections shows a controller's connection states.
	InspectToolConnections = inspect.ToolConnections
)

const (
	inspectServerName    = "cxp-inspect"
	inspectServerVersion = "1.0.0"
)

var (
	inspectOnce     sync.Once
	inspectRegistry *inspect.Registry
	inspectServer   *inspect.Server

	inspectCounter atomic.Int64
)

// InspectionServer returns the process-wide inspection server.
//
// Controllers started with WithVerbose(true), or with the CXP_VERBOSE
// environment variable set, register themselves under a generated
// "controller-N" name for their lifetime. Expose the server over an MCP
// transport of your choice, or call its tools directly:
//
//	result, err := cxp.InspectionServer().CallTool(ctx,
//	    cxp.InspectToolConnections,
//	    map[string]any{"controller": "controller-1"},
//	)
func InspectionServer() *InspectServer {
	inspectInit()

	return inspectServer
}

func inspectInit() {
	inspectOnce.Do(func() {
		inspectRegistry = inspect.NewRegistry()
		inspectServer = inspect.NewServer(inspectServerName, inspectServerVersion, inspectRegistry)
	})
}

// registerInspectionTarget exposes a started controller to the inspection
// server and returns the name to deregister it with.
func registerInspectionTarget(snap inspect.Snapshot) string {
	inspectInit()

	name := fmt.Sprintf("controller-%d", inspectCounter.Add(1))
	inspectRegistry.Register(name, snap)

	return name
}

// deregisterInspectionTarget removes a controller from the inspection
// server.
func deregisterInspectionTarget(name string) {
	inspectInit()

	inspectRegistry.Deregister(name)
}
