package roomlog

// Window computes the half-open range [start, end) of a log holding total
// messages that satisfies a request for limit messages ending offset
// messages before the newest one. Out-of-range or negative inputs clamp to an
// empty window rather than failing. hasMore reports whether older messages
// exist before start.
func Window(total, limit, offset int) (start, end int, hasMore bool) {
	if offset < 0 {
		offset = 0
	}
	end = total - offset
	if limit <= 0 || end <= 0 {
		return 0, 0, false
	}
	start = max(end-limit, 0)
	return start, end, start > 0
}
