// Package pairing implements device registration against the platform
// pairing API.
//
// Registration exchanges a short-lived pairing token for a long-lived
// credentials secret. It runs once in a device's life, when credential
// resolution finds neither an explicit secret nor a cached one. The token
// is pre-flighted with an unverified JWT decode so an expired token fails
// with the remedy spelled out instead of an opaque HTTP 401.
package pairing
