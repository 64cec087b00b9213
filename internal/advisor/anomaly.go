package advisor

import "github.com/andresuchdata/inventory-advisor/internal/domain"

const (
	anomalyWindow   = 30
	spikeMultiplier = 3.0
	dropMultiplier  = 0.1
)

// DetectAnomaly compares the last day of a dense series with the mean of up
// to the trailing 30 days. It returns nil when nothing stands out or the
// trailing mean is zero.
func DetectAnomaly(s DailySeries) *domain.Anomaly {
	n := s.Len()
	if n == 0 {
		return nil
	}

	last := saturatingInt(s.Values[n-1])
	avg30 := mean(s.Values[max(0, n-anomalyWindow):])
	if avg30 <= 0 {
		return nil
	}

	var reason domain.AnomalyReason
	switch {
	case float64(last) >= avg30*spikeMultiplier:
		reason = domain.AnomalySpike
	case float64(last) <= avg30*dropMultiplier:
		reason = domain.AnomalyDrop
	default:
		return nil
	}

	return &domain.Anomaly{
		Anomaly:      true,
		Reason:       reason,
		LastQuantity: last,
		Avg30:        roundFloat(avg30, 2),
	}
}
