package httptransport

import "expvar"

var (
	metricStartRequests = expvar.NewInt("http_start_requests_total")
	metricGuessRequests = expvar.NewInt("http_guess_requests_total")
	metricGuessErrors   = expvar.NewInt("http_guess_errors_total")
)
