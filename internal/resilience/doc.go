// Package resilience groups the failure handling around outbound calls.
//
// Each Slack destination (one incoming webhook, or the Web API as a whole)
// gets its own circuitbreaker.CircuitBreaker from a circuitbreaker.Group,
// so one dead webhook cannot slow deliveries to the others. Inside the
// breaker, retry.WithBackoff repeats transient failures and honours
// Slack's Retry-After through Config.DelayHint:
//
//	cb := breakers.Get(req.Destination())
//	err := retry.WithBackoff(ctx, retry.SlackDeliveryConfig(), func() error {
//		return cb.Run(func() error { return sender.Send(ctx, req) })
//	})
//
// The rule store uses circuitbreaker.DB, which puts every query behind a
// single breaker.
package resilience
