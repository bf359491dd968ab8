package util

// Batch splits items into contiguous batches of at most size elements, preserving order.
// It yields ceil(len(items)/size) batches and none for an empty input. Batches share the
// backing array of items. size must be >= 1.
func Batch[T any](items []T, size int) [][]T {
	if size < 1 {
		panic("util.Batch: size must be >= 1")
	}
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
