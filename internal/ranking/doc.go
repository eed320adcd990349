// Package ranking provides the scoring primitives used across the
// retrieval pipeline: reciprocal rank fusion contributions, the
// harmonic position prior for re-ranking, recency decay, publisher
// trust tiers, and license openness checks.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	// Fuse one channel's ranked list
//	for rank, id := range lexicalIDs {
//		fused[id] += ranking.RRFScore(rank)
//	}
//
//	// Score a fused candidate during re-ranking
//	score := ranking.BaseScore(position)
//	score += weights.Recency * ranking.RecencyScore(rec.TimeEnd, time.Now())
//	score += weights.PublisherTrust * ranking.PublisherTrustScore(rec.Publisher)
//
// Weight Functions:
//
// All scoring functions return values in the [0, 1] range and are
// designed to be composable. The re-ranker combines them with the
// calibrated multipliers from Weights.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of re-ranking
// component multipliers via JSON configuration files loaded at startup.
// This enables relevance experiments without code changes (but requires
// a redeploy or restart to pick up new configuration).
package ranking
