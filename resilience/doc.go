// Package resilience keeps device reads alive across transient faults.
//
// Retry re-issues a failed read with exponential backoff while the error is
// marked retryable. CircuitBreaker stops hammering a device that keeps
// failing and reports it as unavailable until a trial call succeeds.
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("plc-1"))
//	values, err := resilience.Retry(ctx, retryCfg, func() ([]bool, error) {
//	    var out []bool
//	    err := cb.Execute(func() error {
//	        var readErr error
//	        out, readErr = client.ReadCoils(0, 3)
//	        return readErr
//	    })
//	    return out, err
//	})
package resilience
