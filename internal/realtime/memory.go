package realtime

// MemoryBus is an in-process bus; Publish dispatches synchronously.
type MemoryBus struct {
	*Registry
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{Registry: NewRegistry()}
}

// Publish delivers ev to matching subscribers and returns how many ran.
func (b *MemoryBus) Publish(ev Event) int {
	return b.Dispatch(ev)
}

func (b *MemoryBus) Close() error {
	b.closeRegistry()
	return nil
}
