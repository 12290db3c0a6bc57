package vcas

import "github.com/amir-yaghoubi/mqttpattern"

// SubscribeMatching subscribes every channel from the last known channel
// list whose hierarchical name matches an MQTT-style pattern ("+" for
// one segment, "#" for the rest). Channel names use "/" as the segment
// separator, so "BEP/BPM/+/x" matches every BPM x coordinate.
//
// Returns the names that were matched. Call RefreshChannels first if the
// list has not been fetched yet; matching runs against the cached list.
func (c *Client) SubscribeMatching(pattern string, mappers MapperPair) []string {
	if pattern == "" {
		return nil
	}

	var matched []string
	for _, name := range c.Channels() {
		if mqttpattern.Matches(pattern, name) {
			matched = append(matched, name)
		}
	}
	for _, name := range matched {
		c.Subscribe(name, mappers)
	}
	return matched
}
