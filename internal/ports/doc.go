// Package ports defines the interfaces that connect the application layer to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [SerialPort]: an open byte stream from the device
//   - [PortOpener]: opens serial ports and enumerates the ones available
//
// The application layer (internal/app) depends only on these interfaces. The
// adapter in internal/adapters/serial implements them over go.bug.st/serial;
// tests substitute in-memory fakes.
package ports
