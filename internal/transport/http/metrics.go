package httptransport

import "expvar"

var (
	metricLoadingTotal  = expvar.NewInt("game_loading_total")
	metricLoadingErrors = expvar.NewInt("game_loading_errors_total")

	metricPlayDataTotal    = expvar.NewInt("game_playdata_total")
	metricResultQueryTotal = expvar.NewInt("game_result_query_total")
)
