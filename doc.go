// Package cxp provides a Go client for the Common Extension Protocol (CXP).
//
// A CXP client drives extensions on behalf of an embedding application (an
// editor, a code host page): it decides which configured extensions should
// be running for the current document, opens a connection per extension,
// performs the protocol handshake, and fans their notifications into typed
// channels the application consumes.
//
// # Basic Usage
//
// Create a controller, start it, and hand it the current environment.
// The controller compares every environment snapshot against its running
// connections and activates or tears down extensions to match:
//
//	ctrl := cxp.NewController()
//	defer ctrl.Close()
//
//	err := ctrl.Start(ctx,
//	    cxp.WithLogger(slog.Default()),
//	    cxp.WithRelayHost(host),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	root := "file:///workspace"
//	env := cxp.Environment{
//	    Root:      &root,
//	    Component: &cxp.Component{Document: "file:///workspace/main.go", Language: "go"},
//	}
//	if err := ctrl.SetEnvironment(ctx, env.WithExtensions(extensions)); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg := range ctrl.LogMessages() {
//	    fmt.Printf("[%s] %s\n", msg.ExtensionID, msg.Message)
//	}
//
// # Environment Updates
//
// The environment is an immutable snapshot of {root, component, extensions}.
// Derive changed snapshots from the current one and apply them whole:
//
//	env := ctrl.Environment()
//	err := ctrl.SetEnvironment(ctx, env.WithComponent(&cxp.Component{
//	    Document: "file:///workspace/parser.go",
//	    Language: "go",
//	}))
//
// Extension lists usually come from a registry. BindRegistry pumps a
// RegistrySource into the controller until the stream ends:
//
//	go cxp.BindRegistry(ctx, ctrl, source)
//
// # Notifications
//
// Extension traffic is fanned into typed channels, each tagged with the
// extension that produced it: LogMessages, Messages, MessageRequests,
// Decorations and ConfigurationUpdates. All channels close when the
// controller closes. MessageRequests carry an answer obligation:
//
//	for req := range ctrl.MessageRequests() {
//	    action := promptUser(req.Message, req.Actions)
//	    if err := req.Resolve(ctx, action); err != nil {
//	        log.Printf("resolve failed: %v", err)
//	    }
//	}
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	err := ctrl.Start(ctx, cxp.WithLogger(logger))
//
// WithVerbose(true), or setting the CXP_VERBOSE environment variable,
// additionally logs every environment change and connection state
// transition, and registers the controller with the in-process inspection
// server (see InspectionServer).
//
// # Error Handling
//
// Failures carry typed errors describing what went wrong with which
// extension:
//
//	for tr := range ctrl.StateTransitions() {
//	    if tr.To != cxp.StateActivateFailed {
//	        continue
//	    }
//	    if perr, ok := errors.AsType[*cxp.UnsupportedPlatformError](tr.Err); ok {
//	        log.Printf("%s needs platform %q", tr.ExtensionID, perr.Kind)
//	    }
//	}
//
// An activation failure never disturbs other connections: the failed entry
// is parked until the environment stops listing the extension.
package cxp
