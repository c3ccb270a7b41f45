// Package devicemanager is the control core of the Edgehog device runtime.
//
// It sequences the agent's startup (identity, credentials, transport,
// pending-update resolution, initial telemetry) and then serves a single
// receive loop that routes platform messages to the update worker, the
// command executor and the telemetry scheduler.
//
// Architecture:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                   Manager (manager.go)                      │
//	│                                                             │
//	│  Run: Status("Initializing")                                │
//	│   1. resolveDeviceID      (identity.go, system bus)         │
//	│   2. resolveCredentials   (credentials.go, cache/pairing)   │
//	│   3. OpenSession          (transport connect)               │
//	│   4. EnsurePendingResponse (post-reboot update outcome)     │
//	│   5. spawn workers, send initial telemetry                  │
//	│   6. Status("Running") + Ready, enter receive loop          │
//	│                                                             │
//	│  ┌─────────────┐   dispatch    ┌───────────────────────┐   │
//	│  │ receiveLoop │──────────────▶│   router (router.go)  │   │
//	│  └─────────────┘               └───────────────────────┘   │
//	│                                  │         │        │      │
//	│                         updates ▼  commands▼        ▼      │
//	│                  ┌────────────────┐ ┌────────┐ ┌─────────┐ │
//	│                  │ update queue   │ │Execute │ │Config-  │ │
//	│                  │ → updateWorker │ │(inline)│ │Event    │ │
//	│                  └────────────────┘ └────────┘ └─────────┘ │
//	│                                                             │
//	│  ┌──────────────────┐  samples   ┌──────────────────────┐  │
//	│  │ telemetry.Run    │───────────▶│ telemetry queue      │  │
//	│  │ (scheduler)      │            │ → telemetryForwarder │  │
//	│  └──────────────────┘            └──────────────────────┘  │
//	└────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Manager: Bootstrap sequencer and control loop owner
//   - Deps: Collaborator wiring (session factory, update handler, ...)
//   - Session: Transport session boundary (receive, send, stored send)
//   - router: Message-to-handler matching rules
//
// # Concurrency
//
// The receive loop, the update worker, the telemetry scheduler and the
// telemetry forwarder each run on their own goroutine under Run. The two
// queues are bounded; a full update queue backpressures the receive loop.
// Command execution and telemetry reconfiguration run inline on the
// receive loop, so they observe messages in arrival order.
//
// # Usage
//
//	mgr, err := devicemanager.New(devicemanager.Deps{
//	    Config:      cfg,
//	    OpenSession: openSession,
//	    Updates:     updateHandler,
//	    Commands:    commandExecutor,
//	    HardwareID:  hardware.DBusSource{},
//	    Registrar:   pairingClient,
//	    Notifier:    supervisor.New(log),
//	    Logger:      log,
//	    Version:     version,
//	})
//	if err != nil {
//	    return err
//	}
//	return mgr.Run(ctx)
package devicemanager
