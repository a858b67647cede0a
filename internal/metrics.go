package internal

import "expvar"

var (
	requestsTotal = expvar.NewMap("hookfeed_requests_total")
	recordsTotal  = expvar.NewMap("hookfeed_records_total")
	storeErrors   = expvar.NewMap("hookfeed_store_errors_total")
	publishErrors = expvar.NewMap("hookfeed_publish_errors_total")
)

// IncRequest counts an inbound webhook by event type.
func IncRequest(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	requestsTotal.Add(eventType, 1)
}

// IncRecord counts a normalization outcome: an action name or "ignored".
func IncRecord(outcome string) {
	recordsTotal.Add(outcome, 1)
}

func IncStoreError(op string) {
	storeErrors.Add(op, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}
