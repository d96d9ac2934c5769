package history

// Notifier layers append notification on top of a Buffer. The buffer stays
// a plain data structure; subscribers are a concern of whoever wires the
// pipeline together, not of the ring itself.
type Notifier[T any] struct {
	buf  *Buffer[T]
	subs []func(T)
}

func NewNotifier[T any](buf *Buffer[T]) *Notifier[T] {
	return &Notifier[T]{buf: buf}
}

// Subscribe registers fn to be called synchronously on every append, in
// registration order. Subscribers must not retain references into the
// buffer; the value they receive is their copy.
func (n *Notifier[T]) Subscribe(fn func(T)) {
	if fn != nil {
		n.subs = append(n.subs, fn)
	}
}

func (n *Notifier[T]) Append(v T) {
	n.buf.Append(v)
	for _, fn := range n.subs {
		fn(v)
	}
}

func (n *Notifier[T]) Buffer() *Buffer[T] { return n.buf }
