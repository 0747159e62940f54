package domain

// Zero wipes each buffer in place. Slices sharing a backing array are wiped too.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
