package utils

// Chunk partitions items into consecutive batches of at most size elements.
// The final batch holds the remainder. A size <= 0 yields a single batch so
// callers with a misconfigured batch size never silently drop records.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
