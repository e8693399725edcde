package collection

import "photo-shrinker-go/internal/compressor"

// Listener publishes successful batch items into a Collection and forwards
// both outcomes to optional callbacks.
type Listener struct {
	Collection *Collection
	OnAdded    func(Entry, compressor.ItemResult)
	OnFailed   func(compressor.ItemResult)
}

// ImageCompressed implements compressor.Listener.
func (l *Listener) ImageCompressed(res compressor.ItemResult) {
	e := l.Collection.Add(res.Image)
	if l.OnAdded != nil {
		l.OnAdded(e, res)
	}
}

// ImageFailed implements compressor.Listener.
func (l *Listener) ImageFailed(res compressor.ItemResult) {
	if l.OnFailed != nil {
		l.OnFailed(res)
	}
}
