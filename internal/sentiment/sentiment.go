package sentiment

import (
	"sort"
	"time"

	"github.com/sells-group/sentiment-cli/internal/model"
)

// Weights for blending the direct (surveyed + scraped feedback) and
// indirect (search-interest) daily series.
const (
	directWeight   = 0.7
	indirectWeight = 0.3
)

// Ratio returns the fraction of good feedback. An empty distribution reads
// as fully positive so the monitor never alerts on no data.
func Ratio(good, total int64) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(good) / float64(total)
}

// BlendTotal combines an overall direct good-percentage with the overall
// indirect positive-interest percentage under the same 70/30 weighting as
// the daily series. A nil side borrows the other; both nil yields 0.
func BlendTotal(direct, indirect *float64) float64 {
	switch {
	case direct == nil && indirect == nil:
		return 0
	case direct == nil:
		direct = indirect
	case indirect == nil:
		indirect = direct
	}
	return directWeight**direct + indirectWeight**indirect
}

// BlendDaily merges the direct good-percentage series with the indirect
// positive-interest series into one weighted daily series. A day present in
// only one series uses that series' value for both terms; a day in neither
// contributes nothing.
func BlendDaily(direct, indirect []model.DailyPercent) []model.DailyPercent {
	directByDay := byDay(direct)
	indirectByDay := byDay(indirect)

	days := make(map[time.Time]bool, len(directByDay)+len(indirectByDay))
	for d := range directByDay {
		days[d] = true
	}
	for d := range indirectByDay {
		days[d] = true
	}

	out := make([]model.DailyPercent, 0, len(days))
	for d := range days {
		dv, hasDirect := directByDay[d]
		iv, hasIndirect := indirectByDay[d]
		if !hasDirect {
			dv = iv
		}
		if !hasIndirect {
			iv = dv
		}
		out = append(out, model.DailyPercent{
			Date:    d,
			Percent: directWeight*dv + indirectWeight*iv,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func byDay(series []model.DailyPercent) map[time.Time]float64 {
	m := make(map[time.Time]float64, len(series))
	for _, p := range series {
		m[p.Date.Truncate(24*time.Hour)] = p.Percent
	}
	return m
}
