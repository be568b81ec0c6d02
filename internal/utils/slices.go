package utils

// RemoveDuplicates keeps the first occurrence of every item and drops empty values.
func RemoveDuplicates[T comparable](items []T) []T {
	var zero T
	allKeys := make(map[T]struct{}, len(items))
	list := make([]T, 0, len(items))
	for _, item := range items {
		if item == zero {
			continue
		}
		if _, value := allKeys[item]; !value {
			allKeys[item] = struct{}{}
			list = append(list, item)
		}
	}
	return list
}

// Chunks splits items into groups of at most chunkSize elements.
// A non-positive chunkSize yields a single group.
func Chunks[T any](items []T, chunkSize int) (chunks [][]T) {
	if len(items) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		return [][]T{items}
	}
	for chunkSize < len(items) {
		items, chunks = items[chunkSize:], append(chunks, items[0:chunkSize:chunkSize])
	}
	return append(chunks, items)
}
