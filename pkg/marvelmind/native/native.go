// Package native links the proprietary Marvelmind dashapi library.
// Builds carry the real linkage only under the marvelmind_native build
// tag; without it every call reports the library as unavailable so the
// service can fall back to the simulated modem.
package native

// Available reports whether this build links the vendor library.
func Available() bool { return available }
