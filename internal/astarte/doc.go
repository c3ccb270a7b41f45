// Package astarte implements the device side of an Astarte-style MQTT
// session: a long-lived broker connection scoped to one realm and one device,
// exchanging interface-addressed messages.
//
// # Architecture
//
//	                    ┌──────────────────────────┐
//	  broker ──────────►│ paho handler             │
//	                    │  parse topic + envelope  │
//	                    │  → inbound channel       │──► Receive(ctx)
//	                    └──────────────────────────┘
//	                    ┌──────────────────────────┐
//	  Send/SendObject ─►│ envelope encode          │──► broker
//	  SendStored ──────►│  on failure: outbox      │
//	                    │  (flushed on reconnect)  │
//	                    └──────────────────────────┘
//
// Topics follow the scheme <realm>/<device-id>/<interface><path>. Payloads
// ride a JSON envelope {"v": ...}; an empty payload marks a property unset.
//
// # Key Types
//
//   - Client: the session. Safe for concurrent use; one shared instance is
//     handed to every component that publishes.
//   - Options: connection parameters plus the interface definition directory.
//   - Message: one inbound datum (interface, split path, payload).
//   - Payload: individual value or object aggregate.
//   - InterfaceDefinition: parsed interface description; server-owned
//     definitions drive the subscription set.
//
// # Usage
//
//	client, err := astarte.Connect(astarte.Options{
//	    Realm:               "myrealm",
//	    DeviceID:            deviceID,
//	    CredentialsSecret:   secret,
//	    BrokerURL:           "ssl://broker.edgehog.example:8883",
//	    InterfacesDirectory: "/usr/share/edgehog/interfaces",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	for {
//	    msg, err := client.Receive(ctx)
//	    ...
//	}
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Receive may be called
// from one goroutine while others publish; publishing from multiple
// goroutines is supported and serialised by the underlying paho client.
package astarte
