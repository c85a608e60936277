package store

// maxListLimit caps limit values for list queries.
const maxListLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}

	return limit
}
