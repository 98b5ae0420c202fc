package pihole

import "context"

// FTLInfo returns process information about the FTL resolver: version,
// uptime, memory usage, privacy level.
func (c *Client) FTLInfo(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/info/ftl")
}

// NetworkInterfaces returns the host's network interface inventory.
func (c *Client) NetworkInterfaces(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/network/interfaces")
}

// NetworkDevices returns devices discovered on the network via ARP.
func (c *Client) NetworkDevices(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/api/network/devices")
}
