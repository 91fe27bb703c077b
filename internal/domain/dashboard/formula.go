package dashboard

// MeetingsNeeded returns how many meetings an AE still has to book to close
// the remaining quota: (remainder / avgDealSize) / winRate, truncated toward
// zero. A met quota needs no meetings, and a non-positive deal size or win
// rate yields 0 instead of dividing by it.
func MeetingsNeeded(remainder, avgDealSize, winRate float64) int {
	if remainder <= 0 || avgDealSize <= 0 || winRate <= 0 {
		return 0
	}
	deals := remainder / avgDealSize
	return int(deals / winRate)
}

// HistoricRatios derives the pipeline coverage ratio per owner from six-month
// aggregates: total pipeline divided by closed-won. Owners lacking either
// aggregate get no entry, which the builder reports as NoHistoricData.
func HistoricRatios(totalPipeline, closedWon Amounts) Ratios {
	ratios := make(Ratios, len(totalPipeline))
	for owner, total := range totalPipeline {
		won := closedWon.Get(owner)
		if won > 0 && total > 0 {
			ratios[owner] = total / won
		}
	}
	return ratios
}
