package metrics

// EntitlementCheck records the outcome of an entitlement check
func EntitlementCheck(check string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	EntitlementChecks.WithLabelValues(check, outcome).Inc()
}
