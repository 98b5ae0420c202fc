package pihole

import "context"

// FlushARP clears the network table (ARP cache and discovered devices).
func (c *Client) FlushARP(ctx context.Context) (map[string]any, error) {
	return c.postJSON(ctx, "/api/action/flush_arp", nil)
}

// FlushLogs clears the DNS query log.
func (c *Client) FlushLogs(ctx context.Context) (map[string]any, error) {
	return c.postJSON(ctx, "/api/action/flush_logs", nil)
}

// RunGravity rebuilds the blocklist database from the subscribed lists.
func (c *Client) RunGravity(ctx context.Context) (map[string]any, error) {
	return c.postJSON(ctx, "/api/action/gravity", nil)
}

// RestartDNS restarts the FTL resolver.
func (c *Client) RestartDNS(ctx context.Context) (map[string]any, error) {
	return c.postJSON(ctx, "/api/action/restartdns", nil)
}
