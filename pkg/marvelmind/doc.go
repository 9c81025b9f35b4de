// Package marvelmind is a safe binding to the Marvelmind positioning
// modem API. The vendor library is reached through the VendorAPI
// contract; this package owns connection lifecycle, decodes the vendor's
// fixed-layout frames into typed values, and maps vendor error codes to
// a small error taxonomy.
//
// Typical use:
//
//	version, err := marvelmind.APIVersion(api)
//	conn, err := marvelmind.Open(ctx, api, marvelmind.OpenOptions{Timeout: 30 * time.Second})
//	defer conn.Close()
//
//	list, err := conn.GetDeviceList()
//	n, err := list.UpdateLastLocations(conn)
//	for _, d := range list.Devices() {
//		fmt.Printf("#%03d x %s y %s z %s q %d\n",
//			d.Address(), d.XMeters(), d.YMeters(), d.ZMeters(), d.Q())
//	}
package marvelmind
