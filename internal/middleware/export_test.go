package middleware

import "time"

func RateLimitWithClock(rpm int, now func() time.Time) MessageMiddleware {
	return rateLimit(rpm, now)
}
