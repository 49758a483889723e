package redis

import "testing"

func TestKeyHelpers(t *testing.T) {
	tests := []struct {
		prefix string
		got    func(c *Client) string
		want   string
	}{
		{"", func(c *Client) string { return c.lockKey("log_archival") }, "lock:log_archival"},
		{"ls", func(c *Client) string { return c.lockKey("log_archival") }, "ls:lock:log_archival"},
		{"ls", func(c *Client) string { return c.checkpointKey("CABC") }, "ls:checkpoint:CABC"},
		{"", func(c *Client) string { return c.checkpointIndexKey() }, "checkpoints"},
		{"ls", func(c *Client) string { return c.markerKey("abc") }, "ls:processed:abc"},
		{"", func(c *Client) string { return NewJobQueue(c).deadKey("transfers") }, "queue:transfers:dead"},
	}

	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := tt.got(c); got != tt.want {
			t.Errorf("prefix %q: got %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
