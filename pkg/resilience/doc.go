// Package resilience provides circuit breaker and rate limiter primitives
// used to guard outbound calls to embedding/LLM/rerank providers.
package resilience
