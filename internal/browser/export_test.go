package browser

import "time"

// SetCloseTimeout bounds how long Close waits for the current holder.
func SetCloseTimeout(p *Pool, d time.Duration) {
	p.closeTimeout = d
}
