// Package hardware resolves the device identity from the board support
// service on the system bus. It is consulted only when no device id is
// configured, typically on appliances where the id is burned into an
// EEPROM or derived from a SoC serial.
package hardware
