package task

// Listener receives the task lifecycle signals. None of them carry a payload.
type Listener interface {
	OnBegin()
	OnReset()
	OnEnd()
}

// Lifecycle is an ordered observer list. Listeners are notified in
// subscription order.
type Lifecycle struct {
	listeners []Listener
}

func (l *Lifecycle) Subscribe(li Listener) {
	l.listeners = append(l.listeners, li)
}

// Unsubscribe removes the first registration of li, if any.
func (l *Lifecycle) Unsubscribe(li Listener) {
	for i, x := range l.listeners {
		if x == li {
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			return
		}
	}
}

func (l *Lifecycle) Len() int { return len(l.listeners) }

func (l *Lifecycle) broadcast(fn func(Listener)) {
	snapshot := make([]Listener, len(l.listeners))
	copy(snapshot, l.listeners)
	for _, li := range snapshot {
		fn(li)
	}
}

func (l *Lifecycle) broadcastBegin() { l.broadcast(Listener.OnBegin) }
func (l *Lifecycle) broadcastReset() { l.broadcast(Listener.OnReset) }
func (l *Lifecycle) broadcastEnd() { l.broadcast(Listener.OnEnd) }
