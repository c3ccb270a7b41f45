// Package update processes platform update requests end to end: request
// validation, bundle download, installation into the inactive slot, and
// status reporting back to the platform, including after the reboot that
// activates the new slot.
//
// # Architecture
//
//	OTARequest ──► Handler.HandleEvent
//	                 validate uuid/url
//	                 report InProgress
//	                 download bundle ──► download directory
//	                 Installer.Install (RAUC over D-Bus)
//	                 persist pending record ──► state store
//	                 request reboot
//
//	next boot ───► Handler.EnsurePendingResponse
//	                 compare booted slot with the recorded one
//	                 report Done or Error with stored retention
//	                 clear the record
//
// The bundle format is opaque to this package; everything bundle-specific
// lives behind the Installer interface.
package update
