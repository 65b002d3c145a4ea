package channels

import (
	"cmp"
	"iter"
	"slices"
)

// ChannelInfo describes a channel as seen by the dispatcher at a point in
// time. The dispatcher may have reloaded since this was created.
type ChannelInfo struct {
	Name       string        `json:"name"`
	Platform   string        `json:"platform"`
	Active     bool          `json:"active"`
	Recipients int           `json:"recipients"`
	Status     ChannelStatus `json:"status"`
	Error      string        `json:"error,omitempty"` // factory error when not active
}

// ListChannels returns an iterator over the active channels, and the ones
// that failed to start on the last reload, in name order.
func (d *Dispatcher) ListChannels() iter.Seq[ChannelInfo] {
	return func(yield func(ChannelInfo) bool) {
		d.mu.RLock()
		infos := make([]ChannelInfo, 0, len(d.channels)+len(d.failed))
		for name, entry := range d.channels {
			infos = append(infos, entryInfo(name, entry))
		}
		for _, info := range d.failed {
			infos = append(infos, info)
		}
		d.mu.RUnlock()

		slices.SortFunc(infos, func(a, b ChannelInfo) int { return cmp.Compare(a.Name, b.Name) })
		for _, info := range infos {
			if !yield(info) {
				return
			}
		}
	}
}

// Inspect returns information about a single active channel.
// Returns ok=false if the channel is not active in the dispatcher.
func (d *Dispatcher) Inspect(name string) (info ChannelInfo, ok bool) {
	d.mu.RLock()
	entry, exists := d.channels[name]
	d.mu.RUnlock()

	if !exists {
		return ChannelInfo{}, false
	}
	return entryInfo(name, entry), true
}

func entryInfo(name string, entry *channelEntry) ChannelInfo {
	return ChannelInfo{
		Name:       name,
		Platform:   entry.platform,
		Active:     true,
		Recipients: len(entry.channel.Recipients()),
		Status:     entry.channel.Status(),
	}
}
